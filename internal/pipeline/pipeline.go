// Package pipeline implements the driver loop: read, decode, report, record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/core/decoder"
	"firestige.xyz/wiretap/internal/log"
	"firestige.xyz/wiretap/internal/metrics"
	"firestige.xyz/wiretap/internal/source"
)

// Reporter turns a record into a summary line and writes it.
type Reporter interface {
	Report(rec core.CapturedRecord) (line string, ok bool, err error)
}

// Recorder persists raw frames.
type Recorder interface {
	Write(raw core.RawFrame) error
	Close() error
}

// Mirror forwards summary lines elsewhere on a best-effort basis.
type Mirror interface {
	Publish(ctx context.Context, rec core.CapturedRecord, line string)
	Close() error
}

// Session owns everything one run needs. It is used by a single goroutine;
// only Stats and Close may be called concurrently with Run.
type Session struct {
	source     source.Source
	sourceName string
	decoder    decoder.Decoder
	reporter   Reporter
	recorder   Recorder // nil when not recording
	mirror     Mirror   // nil when not mirroring
	logger     log.Logger
	metrics    *Metrics
}

// Config contains session components. Recorder and Mirror are optional.
type Config struct {
	Source     source.Source
	SourceName string // metrics label
	Decoder    decoder.Decoder
	Reporter   Reporter
	Recorder   Recorder
	Mirror     Mirror
	Logger     log.Logger
}

// New creates a session. Source and Reporter are required.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Reporter == nil {
		return nil, errors.New("pipeline: reporter is required")
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "unknown"
	}

	return &Session{
		source:     cfg.Source,
		sourceName: cfg.SourceName,
		decoder:    cfg.Decoder,
		reporter:   cfg.Reporter,
		recorder:   cfg.Recorder,
		mirror:     cfg.Mirror,
		logger:     cfg.Logger,
		metrics:    &Metrics{},
	}, nil
}

// Run processes frames until the source is exhausted, ctx is cancelled, or
// a fatal error occurs. Exhaustion and cancellation return a nil error.
//
// Cancellation is only observed between frames. To interrupt a blocked live
// read, cancel ctx and Close the session.
func Run(ctx context.Context, s *Session) (Stats, error) {
	s.logger.WithField("source", s.sourceName).Debug("driver loop started")

	for {
		if ctx.Err() != nil {
			s.logger.Debug("driver loop cancelled")
			return s.Stats(), nil
		}

		raw, err := s.source.Next()
		if err != nil {
			switch {
			case errors.Is(err, core.ErrEndOfInput):
				s.logger.Debug("end of input")
				return s.Stats(), nil
			case errors.Is(err, core.ErrSourceClosed) && ctx.Err() != nil:
				return s.Stats(), nil
			default:
				return s.Stats(), fmt.Errorf("read frame: %w", err)
			}
		}

		if err := s.processFrame(ctx, raw); err != nil {
			return s.Stats(), err
		}
	}
}

// processFrame decodes, reports and records one frame, in that order.
func (s *Session) processFrame(ctx context.Context, raw core.RawFrame) error {
	start := time.Now()
	defer func() { metrics.FrameProcessSeconds.Observe(time.Since(start).Seconds()) }()

	s.metrics.Frames.Add(1)
	s.metrics.Bytes.Add(uint64(len(raw.Data)))
	metrics.FramesTotal.WithLabelValues(s.sourceName).Inc()
	metrics.FrameBytesTotal.WithLabelValues(s.sourceName).Add(float64(len(raw.Data)))

	// Step 1: Decode L2-L4
	rec := s.decoder.Decode(raw)
	if !rec.Complete() {
		s.metrics.Stops[rec.Stop].Add(1)
		metrics.DecodeStopsTotal.WithLabelValues(rec.Stop.String()).Inc()
		if s.logger.IsTraceEnabled() {
			s.logger.WithFields(map[string]interface{}{
				"stop":   rec.Stop.String(),
				"caplen": raw.CaptureLength,
			}).Trace("frame not fully decoded")
		}
	}

	// Step 2: Report
	line, ok, err := s.reporter.Report(rec)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if ok {
		s.metrics.Reported.Add(1)
		metrics.ReportedTotal.Inc()
		if s.mirror != nil {
			s.mirror.Publish(ctx, rec, line)
		}
	}

	// Step 3: Record, whether or not a line was reported
	if s.recorder != nil {
		if err := s.recorder.Write(raw); err != nil {
			return err
		}
		s.metrics.Recorded.Add(1)
		metrics.RecordedTotal.Inc()
	}

	return nil
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return s.metrics.snapshot()
}

// CloseSource closes only the source, unblocking a pending read.
func (s *Session) CloseSource() error {
	return s.source.Close()
}

// Close releases the source, recorder and mirror.
func (s *Session) Close() error {
	var errs []error
	if err := s.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recorder: %w", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mirror: %w", err))
		}
	}
	return errors.Join(errs...)
}
