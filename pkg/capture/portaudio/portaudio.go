// Package portaudio implements [capture.Device] on the system's default input
// through PortAudio. Building it requires cgo and the PortAudio library.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicerec/pkg/capture"
)

// Device opens the default input device. The zero value uses the device's
// native sample rate.
type Device struct {
	// SampleRate overrides the native rate when non-zero.
	SampleRate int
}

var _ capture.Device = (*Device)(nil)

// New returns a Device on the default input.
func New() *Device { return &Device{} }

// Open implements [capture.Device]. PortAudio exposes no echo cancellation,
// noise suppression or gain control, so requested processing is logged and
// ignored.
func (d *Device) Open(ctx context.Context, c capture.Constraints, tap func([]float32)) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if flags := Unsupported(c); len(flags) > 0 {
		slog.DebugContext(ctx, "portaudio: processing not available, capturing raw input", "requested", flags)
	}
	if c.Channels != 1 {
		return nil, fmt.Errorf("portaudio: %d channels requested, only mono is supported", c.Channels)
	}

	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	rate := float64(d.SampleRate)
	if rate == 0 {
		info, err := pa.DefaultInputDevice()
		if err != nil {
			_ = pa.Terminate()
			return nil, fmt.Errorf("portaudio: default input device: %w", err)
		}
		rate = info.DefaultSampleRate
	}

	s := &stream{rate: int(rate)}
	st, err := pa.OpenDefaultStream(1, 0, rate, c.BlockSize, func(in []float32) {
		s.deliver(tap, in)
	})
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.pa = st

	slog.InfoContext(ctx, "portaudio: input opened", "sample_rate", s.rate, "frames_per_buffer", c.BlockSize)
	return s, nil
}

// Unsupported lists the requested processing features PortAudio cannot
// provide.
func Unsupported(c capture.Constraints) []string {
	var out []string
	if c.EchoCancellation {
		out = append(out, "echo_cancellation")
	}
	if c.NoiseSuppression {
		out = append(out, "noise_suppression")
	}
	if c.AutoGainControl {
		out = append(out, "auto_gain_control")
	}
	return out
}

type stream struct {
	pa   *pa.Stream
	rate int

	mu     sync.Mutex
	closed bool
}

func (s *stream) deliver(tap func([]float32), in []float32) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		tap(in)
	}
}

func (s *stream) SampleRate() int { return s.rate }

// Resources stops the stream, closes the callback tap and terminates the
// PortAudio engine, in that order.
func (s *stream) Resources() []capture.Resource {
	return []capture.Resource{
		{Name: "stream", Release: s.pa.Stop},
		{Name: "tap", Release: s.closeTap},
		{Name: "engine", Release: pa.Terminate},
	}
}

func (s *stream) closeTap() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("portaudio: tap already closed")
	}
	s.closed = true
	s.mu.Unlock()
	return s.pa.Close()
}
