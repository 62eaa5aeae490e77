// Package pcapfile mirrors raw frames to a pcap file.
package pcapfile

import (
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wiretap/internal/core"
)

// Recorder appends frames to a classic pcap file with nanosecond timestamps.
// Files it writes are valid offline input.
type Recorder struct {
	path    string
	file    *os.File
	writer  *pcapgo.Writer
	snapLen int
	written uint64
	closed  bool
}

// Open creates (or truncates) path and writes the file header.
func Open(path string, snapLen int, linkType layers.LinkType) (*Recorder, error) {
	if snapLen <= 0 {
		return nil, fmt.Errorf("%w: snaplen must be positive, got %d", core.ErrConfigInvalid, snapLen)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", core.ErrRecorderWrite, path, err)
	}

	writer := pcapgo.NewWriterNanos(file)
	if err := writer.WriteFileHeader(uint32(snapLen), linkType); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: write header to %s: %v", core.ErrRecorderWrite, path, err)
	}

	return &Recorder{
		path:    path,
		file:    file,
		writer:  writer,
		snapLen: snapLen,
	}, nil
}

// Write appends one frame. Frames longer than the snap length are cut to it.
func (r *Recorder) Write(raw core.RawFrame) error {
	if r.closed {
		return fmt.Errorf("%w: %s: recorder closed", core.ErrRecorderWrite, r.path)
	}

	data := raw.Data
	if len(data) > r.snapLen {
		data = data[:r.snapLen]
	}
	length := raw.Length
	if length < len(data) {
		length = len(data)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     raw.Timestamp,
		CaptureLength: len(data),
		Length:        length,
	}
	if err := r.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrRecorderWrite, r.path, err)
	}
	r.written++
	return nil
}

// Written returns the number of frames written so far.
func (r *Recorder) Written() uint64 {
	return r.written
}

// Close syncs and closes the file. It is safe to call more than once.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.file.Sync(); err != nil {
		r.file.Close()
		return fmt.Errorf("%w: sync %s: %v", core.ErrRecorderWrite, r.path, err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", core.ErrRecorderWrite, r.path, err)
	}
	return nil
}
