package pipeline

import (
	"sync/atomic"

	"firestige.xyz/wiretap/internal/core"
)

// numStopReasons sizes the per-reason counters; StopNone is index 0 and unused.
const numStopReasons = core.NumStopReasons

// Metrics contains per-session counters. They are atomic so Stats may be
// read while Run is in progress.
type Metrics struct {
	Frames   atomic.Uint64
	Bytes    atomic.Uint64
	Reported atomic.Uint64
	Recorded atomic.Uint64
	Stops    [numStopReasons]atomic.Uint64
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	Frames   uint64
	Bytes    uint64
	Reported uint64
	Recorded uint64
	Stops    map[core.StopReason]uint64
}

// Incomplete returns the number of frames that produced no report line.
func (s Stats) Incomplete() uint64 {
	var n uint64
	for _, v := range s.Stops {
		n += v
	}
	return n
}

func (m *Metrics) snapshot() Stats {
	st := Stats{
		Frames:   m.Frames.Load(),
		Bytes:    m.Bytes.Load(),
		Reported: m.Reported.Load(),
		Recorded: m.Recorded.Load(),
		Stops:    make(map[core.StopReason]uint64),
	}
	for i := 1; i < numStopReasons; i++ {
		if v := m.Stops[i].Load(); v > 0 {
			st.Stops[core.StopReason(i)] = v
		}
	}
	return st
}
