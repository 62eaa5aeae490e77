// Package console prints one summary line per completely decoded frame.
package console

import (
	"fmt"
	"io"

	"firestige.xyz/wiretap/internal/core"
)

// Reporter writes summary lines to w, typically stdout.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Format renders a complete record as
//
//	<length> <unix-seconds> <src> <dst> <TCP|UDP> <sport> -> <dport>
//
// ok is false for incomplete records.
func Format(rec core.CapturedRecord) (line string, ok bool) {
	src, dst, _, ok := core.NetworkEndpoints(rec.Network)
	if !ok {
		return "", false
	}
	proto, sport, dport, ok := core.TransportEndpoints(rec.Transport)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d %d %s %s %s %d -> %d",
		rec.Length, rec.Timestamp.Unix(), src, dst, proto, sport, dport), true
}

// Report writes the line for rec, if it has one, and returns it.
func (r *Reporter) Report(rec core.CapturedRecord) (line string, ok bool, err error) {
	line, ok = Format(rec)
	if !ok {
		return "", false, nil
	}
	if _, err := io.WriteString(r.w, line+"\n"); err != nil {
		return line, true, fmt.Errorf("write report line: %w", err)
	}
	return line, true, nil
}
