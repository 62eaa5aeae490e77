// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with %w and matched with errors.Is.
var (
	// Configuration errors
	ErrConfigInvalid = errors.New("wiretap: invalid configuration")

	// Source open errors
	ErrDeviceNotFound    = errors.New("wiretap: capture device not found")
	ErrPermissionDenied  = errors.New("wiretap: permission denied")
	ErrDeviceUnavailable = errors.New("wiretap: capture device unavailable")
	ErrFileNotFound      = errors.New("wiretap: capture file not found")
	ErrMalformedFile     = errors.New("wiretap: malformed capture file")

	// Source read results
	ErrEndOfInput   = errors.New("wiretap: end of input")
	ErrSourceClosed = errors.New("wiretap: source closed")

	// Sink errors
	ErrRecorderWrite = errors.New("wiretap: recorder write failed")

	// Packet decoding errors
	ErrFrameTooShort    = errors.New("wiretap: frame too short")
	ErrUnsupportedProto = errors.New("wiretap: unsupported protocol")
)
