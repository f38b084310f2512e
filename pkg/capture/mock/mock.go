// Package mock provides a scripted [capture.Device] for unit tests.
//
// The device records every Open call and exposes the tap so tests can push
// blocks with [Device.Emit]. Releases are recorded by resource name, and any
// resource can be made to fail through ReleaseErrs.
//
//	dev := &mock.Device{Rate: 44100}
//	s := capture.NewSession(dev)
//	_ = s.Start(ctx)
//	dev.Emit(make([]float32, 4096))
//	rec, _ := s.Stop(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicerec/pkg/capture"
)

// DefaultResources is the teardown list used when Device.ResourceNames is nil.
var DefaultResources = []string{"stream", "tap", "engine"}

// Device is a mock [capture.Device]. All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	// Rate is reported by the opened stream. Defaults to 44100.
	Rate int

	// OpenErr, when non-nil, is returned by Open.
	OpenErr error

	// ResourceNames lists the stream's resources in teardown order.
	// Defaults to [DefaultResources].
	ResourceNames []string

	// ReleaseErrs maps a resource name to the error its Release returns.
	ReleaseErrs map[string]error

	// ReleasePanics names resources whose Release panics.
	ReleasePanics map[string]bool

	// OnOpen, when set, is called with the tap inside Open before it
	// returns, to simulate blocks arriving during acquisition.
	OnOpen func(tap func([]float32))

	// OpenCalls records the constraints of every Open call.
	OpenCalls []capture.Constraints

	// Released records the name of every Release call, in order.
	Released []string

	tap func([]float32)
}

var _ capture.Device = (*Device)(nil)

// Open implements [capture.Device].
func (d *Device) Open(_ context.Context, c capture.Constraints, tap func([]float32)) (capture.Stream, error) {
	d.mu.Lock()
	d.OpenCalls = append(d.OpenCalls, c)
	if d.OpenErr != nil {
		err := d.OpenErr
		d.mu.Unlock()
		return nil, err
	}
	d.tap = tap
	onOpen := d.OnOpen
	d.mu.Unlock()

	if onOpen != nil {
		onOpen(tap)
	}
	return &stream{dev: d}, nil
}

// Emit delivers block to the tap of the open stream. It is a no-op before
// Open and once any resource of the stream has been released.
func (d *Device) Emit(block []float32) {
	d.mu.Lock()
	tap := d.tap
	d.mu.Unlock()
	if tap != nil {
		tap(block)
	}
}

// ReleasedNames returns a copy of the release log.
func (d *Device) ReleasedNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Released...)
}

// Opens returns the number of Open calls.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.OpenCalls)
}

func (d *Device) rate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Rate == 0 {
		return 44100
	}
	return d.Rate
}

type stream struct {
	dev *Device
}

func (s *stream) SampleRate() int { return s.dev.rate() }

func (s *stream) Resources() []capture.Resource {
	s.dev.mu.Lock()
	names := s.dev.ResourceNames
	s.dev.mu.Unlock()
	if names == nil {
		names = DefaultResources
	}
	out := make([]capture.Resource, 0, len(names))
	for _, name := range names {
		out = append(out, capture.Resource{Name: name, Release: s.releaser(name)})
	}
	return out
}

func (s *stream) releaser(name string) func() error {
	return func() error {
		d := s.dev
		d.mu.Lock()
		d.Released = append(d.Released, name)
		d.tap = nil
		err := d.ReleaseErrs[name]
		panics := d.ReleasePanics[name]
		d.mu.Unlock()
		if panics {
			panic("mock: release " + name)
		}
		return err
	}
}
