package portaudio

import (
	"context"
	"slices"
	"testing"

	"github.com/MrWong99/voicerec/pkg/capture"
)

func TestUnsupported(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    capture.Constraints
		want []string
	}{
		{"none", capture.Constraints{Channels: 1}, nil},
		{"all", capture.DefaultConstraints(), []string{"echo_cancellation", "noise_suppression", "auto_gain_control"}},
		{"agc only", capture.Constraints{AutoGainControl: true}, []string{"auto_gain_control"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Unsupported(tc.c); !slices.Equal(got, tc.want) {
				t.Errorf("Unsupported = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOpen_RejectsBeforeInitialize(t *testing.T) {
	t.Parallel()
	d := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Open(ctx, capture.DefaultConstraints(), func([]float32) {}); err == nil {
		t.Error("Open succeeded with cancelled context")
	}

	stereo := capture.DefaultConstraints()
	stereo.Channels = 2
	if _, err := d.Open(context.Background(), stereo, func([]float32) {}); err == nil {
		t.Error("Open accepted stereo")
	}
}

func TestStream_TapClosedOnce(t *testing.T) {
	t.Parallel()
	s := &stream{rate: 44100, closed: true}
	var got int
	s.deliver(func([]float32) { got++ }, []float32{1})
	if got != 0 {
		t.Error("closed stream delivered a block")
	}
	if err := s.closeTap(); err == nil {
		t.Error("second tap close succeeded")
	}
}
