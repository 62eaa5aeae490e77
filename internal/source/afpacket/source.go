//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/source"
)

const Name = "afpacket"

const defaultPollTimeout = 500 * time.Millisecond

func init() {
	source.Register(Name, Open)
}

// Source reads from a memory-mapped AF_PACKET ring.
//
// TPacket must not be closed while a read is in progress, so reads and Close
// are serialized by mu. Reads return at least every poll timeout, which bounds
// how long Close waits.
type Source struct {
	device string

	mu      sync.Mutex
	handle  *afpacket.TPacket
	closed  bool
	closing atomic.Bool
}

// Open binds a TPACKET_V3 socket to opts.Interface. Promiscuous mode is not
// managed by this engine; the interface keeps whatever mode it is in.
func Open(opts source.Options) (source.Source, error) {
	if _, err := net.InterfaceByName(opts.Interface); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrDeviceNotFound, opts.Interface)
	}

	layout, err := newRingLayout(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(opts.Interface),
		afpacket.OptFrameSize(layout.frameSize),
		afpacket.OptBlockSize(layout.blockSize),
		afpacket.OptNumBlocks(layout.numBlocks),
		afpacket.OptPollTimeout(timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, source.ClassifyOpenError(opts.Interface, err)
	}

	return &Source{device: opts.Interface, handle: tp}, nil
}

// Next blocks until a frame arrives or the source is closed.
func (s *Source) Next() (core.RawFrame, error) {
	for {
		if s.closing.Load() {
			return core.RawFrame{}, core.ErrSourceClosed
		}

		frame, err := s.read()
		if errors.Is(err, afpacket.ErrTimeout) {
			continue
		}
		return frame, err
	}
}

func (s *Source) read() (core.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.RawFrame{}, core.ErrSourceClosed
	}

	data, ci, err := s.handle.ReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) {
			return core.RawFrame{}, err
		}
		return core.RawFrame{}, fmt.Errorf("%w: read %s: %v", core.ErrDeviceUnavailable, s.device, err)
	}

	return core.RawFrame{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLength:  ci.CaptureLength,
		Length:         ci.Length,
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

func (s *Source) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Close waits for an in-flight read to return, then releases the ring.
func (s *Source) Close() error {
	s.closing.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.handle.Close()
	}
	return nil
}
