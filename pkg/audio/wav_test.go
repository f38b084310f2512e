package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/MrWong99/voicerec/pkg/audio"
)

func TestEncodeWAV_HeaderFields(t *testing.T) {
	t.Parallel()
	const n = 10
	const rate = 44100
	data := audio.EncodeWAV(make([]int16, n), rate)

	if len(data) != 44+2*n {
		t.Fatalf("len = %d, want %d", len(data), 44+2*n)
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"riff", string(data[0:4]), "RIFF"},
		{"riff size", le.Uint32(data[4:8]), uint32(36 + 2*n)},
		{"wave", string(data[8:12]), "WAVE"},
		{"fmt", string(data[12:16]), "fmt "},
		{"fmt size", le.Uint32(data[16:20]), uint32(16)},
		{"format code", le.Uint16(data[20:22]), uint16(1)},
		{"channels", le.Uint16(data[22:24]), uint16(1)},
		{"sample rate", le.Uint32(data[24:28]), uint32(rate)},
		{"byte rate", le.Uint32(data[28:32]), uint32(rate * 2)},
		{"block align", le.Uint16(data[32:34]), uint16(2)},
		{"bits per sample", le.Uint16(data[34:36]), uint16(16)},
		{"data", string(data[36:40]), "data"},
		{"data size", le.Uint32(data[40:44]), uint32(2 * n)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
	for i, b := range data[44:] {
		if b != 0 {
			t.Fatalf("payload byte %d = %#x, want 0", i, b)
		}
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	t.Parallel()
	data := audio.EncodeWAV(nil, 48000)
	if len(data) != audio.WAVHeaderSize {
		t.Fatalf("len = %d, want %d", len(data), audio.WAVHeaderSize)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 0 {
		t.Errorf("data size = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 36 {
		t.Errorf("riff size = %d, want 36", got)
	}
}

func TestEncodeWAV_SampleBytesLittleEndian(t *testing.T) {
	t.Parallel()
	data := audio.EncodeWAV([]int16{32767, -32768, 0x0102}, 8000)
	want := []byte{0xFF, 0x7F, 0x00, 0x80, 0x02, 0x01}
	if !bytes.Equal(data[44:], want) {
		t.Errorf("payload = % x, want % x", data[44:], want)
	}
}

func TestEncodeWAV_DecodesWithGoAudio(t *testing.T) {
	t.Parallel()
	pcm := []int16{0, 1000, -1000, 32767, -32768}
	data := audio.EncodeWAV(pcm, 16000)

	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("go-audio/wav rejected the file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("NumChans = %d, want 1", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want 16", dec.BitDepth)
	}
	if want := (goaudio.Format{NumChannels: 1, SampleRate: 16000}); buf.Format == nil || *buf.Format != want {
		t.Errorf("buffer format = %+v, want %+v", buf.Format, want)
	}
	if len(buf.Data) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(pcm))
	}
	for i, s := range pcm {
		if buf.Data[i] != int(s) {
			t.Errorf("sample %d: got %d, want %d", i, buf.Data[i], s)
		}
	}
}
