// Package pcap is the libpcap live capture engine.
package pcap

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/source"
)

const Name = "pcap"

// defaultTimeout bounds how long Close waits for a blocked read.
const defaultTimeout = 500 * time.Millisecond

func init() {
	source.Register(Name, Open)
	source.RegisterDeviceLister(listDevices)
}

type Source struct {
	handle *pcap.Handle
	device string

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open activates a capture handle on opts.Interface.
func Open(opts source.Options) (source.Source, error) {
	if err := lookupDevice(opts.Interface); err != nil {
		return nil, err
	}

	inactive, err := pcap.NewInactiveHandle(opts.Interface)
	if err != nil {
		return nil, source.ClassifyOpenError(opts.Interface, err)
	}
	defer inactive.CleanUp()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if err := inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, fmt.Errorf("%w: snaplen %d: %v", core.ErrConfigInvalid, opts.SnapLen, err)
	}
	if err := inactive.SetPromisc(opts.Promiscuous); err != nil {
		return nil, source.ClassifyOpenError(opts.Interface, err)
	}
	if err := inactive.SetTimeout(timeout); err != nil {
		return nil, source.ClassifyOpenError(opts.Interface, err)
	}
	if opts.BufferSizeMB > 0 {
		if err := inactive.SetBufferSize(opts.BufferSizeMB * 1024 * 1024); err != nil {
			return nil, source.ClassifyOpenError(opts.Interface, err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, source.ClassifyOpenError(opts.Interface, err)
	}

	return &Source{handle: handle, device: opts.Interface}, nil
}

func lookupDevice(name string) error {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return source.ClassifyOpenError(name, err)
	}
	for _, d := range devs {
		if d.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrDeviceNotFound, name)
}

func listDevices() ([]source.Device, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, source.ClassifyOpenError("any", err)
	}
	out := make([]source.Device, 0, len(devs))
	for _, d := range devs {
		dev := source.Device{Name: d.Name, Description: d.Description}
		for _, a := range d.Addresses {
			dev.Addresses = append(dev.Addresses, a.IP.String())
		}
		out = append(out, dev)
	}
	return out, nil
}

// Next blocks until a frame arrives or the source is closed.
// Read timeouts are absorbed here.
func (s *Source) Next() (core.RawFrame, error) {
	for {
		if s.closed.Load() {
			return core.RawFrame{}, core.ErrSourceClosed
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
			return core.RawFrame{
				Data:           data,
				Timestamp:      ci.Timestamp,
				CaptureLength:  ci.CaptureLength,
				Length:         ci.Length,
				InterfaceIndex: ci.InterfaceIndex,
			}, nil
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF), s.closed.Load():
			return core.RawFrame{}, core.ErrSourceClosed
		default:
			return core.RawFrame{}, fmt.Errorf("%w: read %s: %v", core.ErrDeviceUnavailable, s.device, err)
		}
	}
}

func (s *Source) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

// Close stops the capture. A concurrent Next returns core.ErrSourceClosed.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.handle.Close()
	})
	return nil
}
