package audio

import (
	"encoding/binary"
	"math"
)

// Merge concatenates bufs in order into one contiguous sample slice. The
// result length is always the sum of the buffer lengths; an empty input
// yields an empty, non-nil slice.
func Merge(bufs []SampleBuffer) []float32 {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	out := make([]float32, 0, total)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}

// ToPCM16 converts normalised float samples to signed 16-bit PCM. Each sample
// is clamped to [-1, 1]; non-negative values scale by 32767 and negative
// values by 32768, so -1 maps to math.MinInt16. Fractions are truncated
// toward zero. NaN converts to 0.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, f := range samples {
		out[i] = sampleToInt16(f)
	}
	return out
}

func sampleToInt16(f float32) int16 {
	s := float64(f)
	if math.IsNaN(s) {
		return 0
	}
	s = max(-1, min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// Int16sToBytes converts PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// Float32sFromBytes decodes little-endian IEEE-754 float32 samples. A
// trailing partial sample is ignored.
func Float32sFromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Float32sToBytes encodes float32 samples as little-endian bytes.
func Float32sToBytes(samples []float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, f := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}
