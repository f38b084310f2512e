package codec_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voicerec/pkg/codec"
	"github.com/MrWong99/voicerec/pkg/codec/mock"
)

func TestEncode_WindowCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		samples     int
		wantWindows int
		wantLast    int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{1151, 1, 1151},
		{1152, 1, 1152},
		{1153, 2, 1},
		{10240, 9, 10240 - 8*1152},
	}
	for _, tc := range tests {
		c := &mock.Codec{}
		if _, err := codec.Encode(context.Background(), c, make([]int16, tc.samples), 44100, 128); err != nil {
			t.Fatalf("samples=%d: Encode: %v", tc.samples, err)
		}
		enc := c.LastEncoder()
		if got := len(enc.Windows); got != tc.wantWindows {
			t.Errorf("samples=%d: windows = %d, want %d", tc.samples, got, tc.wantWindows)
		}
		if enc.FlushCalls != 1 {
			t.Errorf("samples=%d: flush calls = %d, want 1", tc.samples, enc.FlushCalls)
		}
		if enc.EncodeAfterFlush != 0 {
			t.Errorf("samples=%d: %d windows submitted after flush", tc.samples, enc.EncodeAfterFlush)
		}
		if tc.wantWindows > 0 {
			if got := len(enc.Windows[len(enc.Windows)-1]); got != tc.wantLast {
				t.Errorf("samples=%d: last window = %d samples, want %d", tc.samples, got, tc.wantLast)
			}
		}
	}
}

func TestEncode_OutputOrderAndFlushTail(t *testing.T) {
	t.Parallel()
	c := &mock.Codec{
		EncodeOutput: func(window int, _ []int16) []byte {
			if window == 1 {
				return nil // encoder still buffering
			}
			return []byte{byte('a' + window)}
		},
		FlushOutput: []byte("Z"),
	}
	got, err := codec.Encode(context.Background(), c, make([]int16, 3*codec.WindowSize), 48000, 96)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []byte("acZ"); !bytes.Equal(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
	if p := c.NewEncoderCalls[0]; p != (mock.EncoderParams{Channels: 1, SampleRate: 48000, BitrateKbps: 96}) {
		t.Errorf("NewEncoder params = %+v", p)
	}
}

func TestEncode_WindowsPreserveSampleOrder(t *testing.T) {
	t.Parallel()
	pcm := make([]int16, codec.WindowSize+10)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	c := &mock.Codec{}
	if _, err := codec.Encode(context.Background(), c, pcm, 8000, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc := c.LastEncoder()
	var joined []int16
	for _, w := range enc.Windows {
		joined = append(joined, w...)
	}
	for i := range pcm {
		if joined[i] != pcm[i] {
			t.Fatalf("sample %d: got %d, want %d", i, joined[i], pcm[i])
		}
	}
	if got := c.NewEncoderCalls[0].BitrateKbps; got != codec.DefaultBitrateKbps {
		t.Errorf("bitrate = %d, want default %d", got, codec.DefaultBitrateKbps)
	}
}

func TestEncode_EmptyFlushOnly(t *testing.T) {
	t.Parallel()
	c := &mock.Codec{FlushOutput: []byte{0xFF, 0xFB}}
	got, err := codec.Encode(context.Background(), c, nil, 44100, 128)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(got, []byte{0xFF, 0xFB}) {
		t.Errorf("output = % x", got)
	}
}

func TestEncode_Errors(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("boom")

	t.Run("nil codec", func(t *testing.T) {
		t.Parallel()
		if _, err := codec.Encode(context.Background(), nil, nil, 44100, 128); !errors.Is(err, codec.ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("constructor", func(t *testing.T) {
		t.Parallel()
		c := &mock.Codec{NewEncoderErr: errBoom}
		if _, err := codec.Encode(context.Background(), c, make([]int16, 10), 44100, 128); !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
	})

	t.Run("window", func(t *testing.T) {
		t.Parallel()
		c := &mock.Codec{EncodeErr: errBoom, EncodeErrAt: 1}
		_, err := codec.Encode(context.Background(), c, make([]int16, 3*codec.WindowSize), 44100, 128)
		if !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
		enc := c.LastEncoder()
		if len(enc.Windows) != 2 {
			t.Errorf("windows = %d, want 2 (stop at failure)", len(enc.Windows))
		}
		if enc.FlushCalls != 1 {
			t.Errorf("flush calls = %d, want 1", enc.FlushCalls)
		}
	})

	t.Run("flush", func(t *testing.T) {
		t.Parallel()
		c := &mock.Codec{FlushErr: errBoom}
		if _, err := codec.Encode(context.Background(), c, make([]int16, 10), 44100, 128); !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := &mock.Codec{}
		if _, err := codec.Encode(ctx, c, make([]int16, 10), 44100, 128); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if got := c.LastEncoder().FlushCalls; got != 1 {
			t.Errorf("flush calls = %d, want 1", got)
		}
	})
}
