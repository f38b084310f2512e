package codec

import (
	"bytes"
	"context"
	"fmt"
)

// Encode runs pcm through a fresh encoder from c. Samples are submitted in
// consecutive windows of [WindowSize] (the last window may be shorter), the
// non-empty outputs are appended in call order, and Flush is called exactly
// once after the final window. An empty pcm slice still flushes.
//
// ctx is checked between windows; the encoder is flushed and discarded on
// cancellation.
func Encode(ctx context.Context, c Codec, pcm []int16, sampleRate, bitrateKbps int) ([]byte, error) {
	if c == nil {
		return nil, ErrUnavailable
	}
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultBitrateKbps
	}

	enc, err := c.NewEncoder(1, sampleRate, bitrateKbps)
	if err != nil {
		return nil, fmt.Errorf("codec: %s: new encoder: %w", c.Name(), err)
	}

	var out bytes.Buffer
	for off := 0; off < len(pcm); off += WindowSize {
		if err := ctx.Err(); err != nil {
			_, _ = enc.Flush()
			return nil, fmt.Errorf("codec: %s: %w", c.Name(), err)
		}
		end := min(off+WindowSize, len(pcm))
		chunk, err := enc.EncodeBuffer(pcm[off:end])
		if err != nil {
			_, _ = enc.Flush()
			return nil, fmt.Errorf("codec: %s: encode window at %d: %w", c.Name(), off, err)
		}
		out.Write(chunk)
	}

	tail, err := enc.Flush()
	if err != nil {
		return nil, fmt.Errorf("codec: %s: flush: %w", c.Name(), err)
	}
	out.Write(tail)
	return out.Bytes(), nil
}
