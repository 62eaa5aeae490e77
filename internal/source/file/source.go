// Package file reads frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wiretap/internal/core"
)

// Name is the metrics label of the offline source.
const Name = "file"

const pcapngMagic = 0x0A0D0D0A

var pcapMagics = map[uint32]struct{}{
	0xA1B2C3D4: {}, // microsecond
	0xA1B23C4D: {}, // nanosecond
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source replays a capture file in file order. It is not restartable.
type Source struct {
	path   string
	f      *os.File
	reader packetReader

	mu     sync.Mutex
	err    error // sticky terminal error
	closed bool
}

// Open opens path and reads its file header. Both classic pcap and pcapng
// are accepted.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", core.ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
		}
	}

	r, err := newReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedFile, path, err)
	}

	return &Source{path: path, f: f, reader: r}, nil
}

func newReader(br *bufio.Reader) (packetReader, error) {
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}

	if binary.BigEndian.Uint32(head) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return ng, nil
	}
	if !isPcapMagic(head) {
		return nil, fmt.Errorf("unknown magic % x", head)
	}
	r, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func isPcapMagic(head []byte) bool {
	if _, ok := pcapMagics[binary.BigEndian.Uint32(head)]; ok {
		return true
	}
	_, ok := pcapMagics[binary.LittleEndian.Uint32(head)]
	return ok
}

// Next returns the next frame in file order. After the last frame it returns
// core.ErrEndOfInput on every call.
func (s *Source) Next() (core.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.RawFrame{}, core.ErrSourceClosed
	}
	if s.err != nil {
		return core.RawFrame{}, s.err
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		// A record header followed by no data also surfaces as io.EOF.
		if errors.Is(err, io.EOF) && ci.CaptureLength == 0 {
			s.err = core.ErrEndOfInput
		} else {
			s.err = fmt.Errorf("%w: %s: %v", core.ErrMalformedFile, s.path, err)
		}
		return core.RawFrame{}, s.err
	}

	return core.RawFrame{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLength:  ci.CaptureLength,
		Length:         ci.Length,
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// LinkType reports the link type from the file header.
func (s *Source) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

// Close releases the file. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
