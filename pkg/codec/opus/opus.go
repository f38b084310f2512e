// Package opus provides an in-process Opus [codec.Codec] that writes an Ogg
// container. It needs no external binary and is registered as the
// "builtin:opus" codec source.
package opus

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/MrWong99/voicerec/pkg/codec"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"layeh.com/gopus"
)

const (
	frameMs = 20

	// granuleStep is the Ogg Opus granule increment per frame. Granule
	// positions always count 48 kHz samples regardless of the input rate.
	granuleStep = 48000 * frameMs / 1000

	// maxPacketBytes is the recommended upper bound for one Opus packet.
	maxPacketBytes = 4000
)

// ErrUnsupportedRate is returned by NewEncoder for rates Opus cannot encode.
var ErrUnsupportedRate = errors.New("opus: unsupported sample rate")

// Format is the container produced by this codec.
var Format = codec.Format{Name: "opus", Extension: ".ogg", ContentType: "audio/ogg"}

// Codec is the Opus/Ogg codec. The zero value is ready to use.
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

// New returns the Opus codec.
func New() *Codec { return &Codec{} }

// Name implements [codec.Codec].
func (*Codec) Name() string { return "opus" }

// Format implements [codec.Codec].
func (*Codec) Format() codec.Format { return Format }

// SupportedRate reports whether Opus accepts rate as its input rate.
func SupportedRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// NewEncoder implements [codec.Codec]. Rates outside [SupportedRate] fail
// with [ErrUnsupportedRate].
func (*Codec) NewEncoder(channels, sampleRate, bitrateKbps int) (codec.Encoder, error) {
	if channels != 1 {
		return nil, fmt.Errorf("opus: %d channels not supported", channels)
	}
	if !SupportedRate(sampleRate) {
		return nil, fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, sampleRate)
	}
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	if bitrateKbps > 0 {
		enc.SetBitrate(bitrateKbps * 1000)
	}

	e := &Encoder{
		enc:       enc,
		frameSize: sampleRate * frameMs / 1000,
		ssrc:      1,
	}
	e.ogg, err = oggwriter.NewWith(&e.out, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("opus: create ogg writer: %w", err)
	}
	return e, nil
}

// Encoder re-frames arbitrary windows into 20 ms Opus frames and wraps each
// packet in an Ogg page. Not safe for concurrent use.
type Encoder struct {
	enc       *gopus.Encoder
	ogg       *oggwriter.OggWriter
	out       bytes.Buffer
	frameSize int

	pending []int16
	seq     uint16
	ts      uint32
	ssrc    uint32
	flushed bool
}

// EncodeBuffer encodes every complete frame in pending+pcm and returns the Ogg
// bytes produced so far. The first call also returns the container headers.
func (e *Encoder) EncodeBuffer(pcm []int16) ([]byte, error) {
	if e.flushed {
		return nil, errors.New("opus: encoder already flushed")
	}
	e.pending = append(e.pending, pcm...)
	for len(e.pending) >= e.frameSize {
		if err := e.writeFrame(e.pending[:e.frameSize]); err != nil {
			return nil, err
		}
		e.pending = e.pending[e.frameSize:]
	}
	// Keep the remainder in a fresh slice so the consumed prefix can be freed.
	e.pending = append([]int16(nil), e.pending...)
	return e.drain(), nil
}

// Flush pads any partial frame with silence, closes the container and
// returns the remaining bytes.
func (e *Encoder) Flush() ([]byte, error) {
	if e.flushed {
		return nil, nil
	}
	e.flushed = true
	if len(e.pending) > 0 {
		frame := make([]int16, e.frameSize)
		copy(frame, e.pending)
		e.pending = nil
		if err := e.writeFrame(frame); err != nil {
			return e.drain(), err
		}
	}
	if err := e.ogg.Close(); err != nil {
		return e.drain(), fmt.Errorf("opus: close ogg writer: %w", err)
	}
	return e.drain(), nil
}

func (e *Encoder) writeFrame(frame []int16) error {
	packet, err := e.enc.Encode(frame, e.frameSize, maxPacketBytes)
	if err != nil {
		return fmt.Errorf("opus: encode frame: %w", err)
	}
	err = e.ogg.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: e.seq,
			Timestamp:      e.ts,
			SSRC:           e.ssrc,
		},
		Payload: packet,
	})
	if err != nil {
		return fmt.Errorf("opus: write ogg page: %w", err)
	}
	e.seq++
	e.ts += granuleStep
	return nil
}

func (e *Encoder) drain() []byte {
	if e.out.Len() == 0 {
		return nil
	}
	b := bytes.Clone(e.out.Bytes())
	e.out.Reset()
	return b
}
