// Package source provides the RawFrame sources: live capture engines and
// offline capture files.
package source

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/source/file"
)

// Source produces raw frames one at a time.
//
// Next blocks until a frame is available. It returns core.ErrEndOfInput once
// an offline source is exhausted and core.ErrSourceClosed after Close.
type Source interface {
	Next() (core.RawFrame, error)
	LinkType() layers.LinkType
	Close() error
}

// Options selects and tunes a source. Exactly one of Interface and File is set.
type Options struct {
	Interface    string
	File         string
	Engine       string
	SnapLen      int
	Promiscuous  bool
	Timeout      time.Duration
	BufferSizeMB int
}

// Opener creates a live source for a capture engine.
type Opener func(opts Options) (Source, error)

// Device describes a capture device.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// DeviceLister enumerates capture devices.
type DeviceLister func() ([]Device, error)

var (
	mu      sync.RWMutex
	engines = make(map[string]Opener)
	lister  DeviceLister
)

// Register makes a live capture engine available under name.
// It panics if the name is registered twice.
func Register(name string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := engines[name]; dup {
		panic("source: engine registered twice: " + name)
	}
	engines[name] = fn
}

// RegisterDeviceLister installs the function used by Devices.
func RegisterDeviceLister(fn DeviceLister) {
	mu.Lock()
	defer mu.Unlock()
	lister = fn
}

// Engines returns the registered engine names, sorted.
func Engines() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Devices lists capture devices through the registered lister.
func Devices() ([]Device, error) {
	mu.RLock()
	fn := lister
	mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: no device lister registered", core.ErrDeviceUnavailable)
	}
	return fn()
}

// Open creates the source described by opts: the offline reader when File is
// set, otherwise the live engine named by Engine.
func Open(opts Options) (Source, error) {
	if opts.File != "" {
		s, err := file.Open(opts.File)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	mu.RLock()
	fn, ok := engines[opts.Engine]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture engine %q is not available on this build", core.ErrConfigInvalid, opts.Engine)
	}
	return fn(opts)
}

// Name returns the metrics label for the source opts selects.
func Name(opts Options) string {
	if opts.File != "" {
		return file.Name
	}
	return opts.Engine
}

// ClassifyOpenError maps a capture library error to one of the device
// sentinels. Capture libraries only report these conditions as text.
func ClassifyOpenError(device string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, os.ErrPermission),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "don't have permission"):
		return fmt.Errorf("%w: %s: %v", core.ErrPermissionDenied, device, err)
	case strings.Contains(msg, "no such device"),
		strings.Contains(msg, "doesn't exist"),
		strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: %s: %v", core.ErrDeviceNotFound, device, err)
	default:
		return fmt.Errorf("%w: %s: %v", core.ErrDeviceUnavailable, device, err)
	}
}
