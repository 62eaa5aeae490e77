package pipeline

import (
	"firestige.xyz/wiretap/internal/core/decoder"
	"firestige.xyz/wiretap/internal/log"
	"firestige.xyz/wiretap/internal/source"
)

// Builder provides a fluent interface for building sessions.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new session builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSource sets the frame source and its metrics label.
func (b *Builder) WithSource(s source.Source, name string) *Builder {
	b.config.Source = s
	b.config.SourceName = name
	return b
}

// WithDecoder sets the frame decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithReporter sets the summary line reporter.
func (b *Builder) WithReporter(r Reporter) *Builder {
	b.config.Reporter = r
	return b
}

// WithRecorder enables recording of every frame read.
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.config.Recorder = r
	return b
}

// WithMirror enables mirroring of reported lines.
func (b *Builder) WithMirror(m Mirror) *Builder {
	b.config.Mirror = m
	return b
}

// WithLogger sets the session logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the session.
func (b *Builder) Build() (*Session, error) {
	return New(b.config)
}
