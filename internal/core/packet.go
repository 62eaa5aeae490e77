// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawFrame is one frame as delivered by a capture source.
// Data is owned by the frame and is never mutated after the read.
type RawFrame struct {
	Data           []byte    // Full frame as captured
	Timestamp      time.Time // Capture timestamp
	CaptureLength  int       // Bytes actually captured
	Length         int       // Original on-wire length
	InterfaceIndex int       // Interface index, zero when unknown
}

// StopReason records where layered decoding stopped.
type StopReason uint8

const (
	StopNone StopReason = iota // all layers decoded
	StopLinkTruncated
	StopNetworkUnsupported
	StopNetworkMalformed
	StopTransportUnsupported
	StopTransportMalformed
	StopLinkUnsupported  // link type other than Ethernet
	StopNonFirstFragment // IPv4 fragment with a non-zero offset
)

// NumStopReasons is the number of StopReason values, StopNone included.
const NumStopReasons = int(StopNonFirstFragment) + 1

var stopReasonNames = [...]string{
	StopNone:                 "none",
	StopLinkTruncated:        "link_truncated",
	StopNetworkUnsupported:   "network_unsupported",
	StopNetworkMalformed:     "network_malformed",
	StopTransportUnsupported: "transport_unsupported",
	StopTransportMalformed:   "transport_malformed",
	StopLinkUnsupported:      "link_unsupported",
	StopNonFirstFragment:     "non_first_fragment",
}

func (s StopReason) String() string {
	if int(s) < len(stopReasonNames) {
		return stopReasonNames[s]
	}
	return "unknown"
}

// CapturedRecord is the result of L2-L4 decoding of one RawFrame.
// A nil layer means "not decoded", never "decoded as empty".
type CapturedRecord struct {
	Timestamp     time.Time
	Length        int
	CaptureLength int

	Link      *LinkHeader    // nil only when the frame is shorter than a link header
	Network   NetworkLayer   // nil when unsupported or malformed
	Transport TransportLayer // nil when Network is nil, unsupported or malformed

	Stop StopReason
}

// Complete reports whether both the network and transport layers were decoded.
func (r CapturedRecord) Complete() bool {
	return r.Network != nil && r.Transport != nil
}
