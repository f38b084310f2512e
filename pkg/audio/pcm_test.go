package audio_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/MrWong99/voicerec/pkg/audio"
)

func TestToPCM16(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"half positive truncates", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"clamp above", 1.5, 32767},
		{"clamp below", -1.5, -32768},
		{"far out of range", 1000, 32767},
		{"nan", float32(math.NaN()), 0},
		{"positive infinity", float32(math.Inf(1)), 32767},
		{"negative infinity", float32(math.Inf(-1)), -32768},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := audio.ToPCM16([]float32{tc.in})
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0] != tc.want {
				t.Errorf("ToPCM16(%v) = %d, want %d", tc.in, got[0], tc.want)
			}
		})
	}
}

func TestToPCM16_InRangeIsPureScaling(t *testing.T) {
	t.Parallel()
	in := []float32{-1, -0.25, 0, 0.25, 1}
	got := audio.ToPCM16(in)
	for i, f := range in {
		var want int16
		if f < 0 {
			want = int16(float64(f) * 32768)
		} else {
			want = int16(float64(f) * 32767)
		}
		if got[i] != want {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want)
		}
	}
}

func TestToPCM16_PreservesLengthAndOrder(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, -0.1, 0.2, -0.2}
	got := audio.ToPCM16(in)
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	if !(got[0] > 0 && got[1] < 0 && got[2] > got[0] && got[3] < got[1]) {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestMerge_ConcatenationLaw(t *testing.T) {
	t.Parallel()
	bufs := []audio.SampleBuffer{
		{0.1, 0.2, 0.3},
		{},
		{0.4},
		{0.5, 0.6},
	}
	got := audio.Merge(bufs)
	want := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()
	got := audio.Merge(nil)
	if got == nil {
		t.Fatal("Merge(nil) returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	t.Parallel()
	buf := audio.SampleBuffer{0.5, 0.5}
	got := audio.Merge([]audio.SampleBuffer{buf})
	got[0] = -1
	if buf[0] != 0.5 {
		t.Error("Merge result aliases the input buffer")
	}
}

func TestFloat32Bytes_RoundTrip(t *testing.T) {
	t.Parallel()
	in := []float32{0, 1, -1, 0.123}
	b := audio.Float32sToBytes(in)
	if len(b) != 16 {
		t.Fatalf("len = %d, want 16", len(b))
	}
	out := audio.Float32sFromBytes(append(b, 0xFF)) // trailing partial sample ignored
	if len(out) != len(in) {
		t.Fatalf("decoded len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestInt16sToBytes(t *testing.T) {
	t.Parallel()
	got := audio.Int16sToBytes([]int16{1, -1, 0x1234})
	want := []byte{0x01, 0x00, 0xFF, 0xFF, 0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}
