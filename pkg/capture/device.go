// Package capture records mono microphone audio into memory.
//
// A [Session] moves through Idle → Recording → Stopping → Idle. While
// recording it copies every block delivered by the [Device] tap; stopping
// releases the device's resources, merges the blocks and returns a
// [Recording]. Concrete devices live in sub-packages (portaudio, wsdevice).
package capture

import (
	"context"
	"errors"
	"time"
)

// DefaultBlockSize is the number of frames requested per tap callback.
const DefaultBlockSize = 4096

var (
	// ErrDeviceUnavailable wraps any failure to acquire the input device,
	// including permission denial and missing hardware.
	ErrDeviceUnavailable = errors.New("capture: input device unavailable")

	// ErrAlreadyRecording is returned by Start when the session is not idle.
	ErrAlreadyRecording = errors.New("capture: already recording")

	// ErrNotRecording is returned by Stop when no recording is in progress.
	ErrNotRecording = errors.New("capture: not recording")
)

// Constraints describe the stream a session asks a device for. Processing
// flags are requests; devices that cannot honour them log and continue.
type Constraints struct {
	Channels         int  `json:"channels"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
	AutoGainControl  bool `json:"auto_gain_control"`
	BlockSize        int  `json:"block_size"`
}

// DefaultConstraints returns mono capture with all voice processing enabled
// and [DefaultBlockSize] frames per block.
func DefaultConstraints() Constraints {
	return Constraints{
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		BlockSize:        DefaultBlockSize,
	}
}

// Device opens input streams.
type Device interface {
	// Open acquires the input and starts delivering blocks of normalised
	// samples to tap. tap may be called from any goroutine and must not
	// retain block. On error Open releases anything it acquired.
	Open(ctx context.Context, c Constraints, tap func(block []float32)) (Stream, error)
}

// Stream is an open input.
type Stream interface {
	// SampleRate is the native, fixed rate of the stream in Hz.
	SampleRate() int

	// Resources lists what must be released on stop, in teardown order.
	Resources() []Resource
}

// Resource is one independently releasable part of a stream.
type Resource struct {
	Name    string
	Release func() error
}

// Recording is the result of stopping a session.
type Recording struct {
	// Samples is every captured sample in capture order. Never nil.
	Samples []float32

	// SampleRate is the stream's native rate.
	SampleRate int

	// Blocks is the number of tap callbacks that were stored.
	Blocks int

	// Elapsed is the tick counter at stop time.
	Elapsed time.Duration
}

// Duration returns the audio length derived from the sample count.
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.SampleRate)
}
