// Package mock provides call-recording implementations of [codec.Codec],
// [codec.Encoder] and [codec.Source] for unit tests.
//
// Set the exported fields before use; inspect the recorded calls after.
// All mocks are safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicerec/pkg/codec"
)

// ─── Codec ────────────────────────────────────────────────────────────────────

// Codec is a mock [codec.Codec]. Every call to NewEncoder creates a new
// [Encoder] that is also appended to Encoders.
type Codec struct {
	mu sync.Mutex

	// CodecName is returned by Name. Defaults to "mock".
	CodecName string

	// FormatResult is returned by Format. Defaults to an mp3 format.
	FormatResult codec.Format

	// NewEncoderErr, when non-nil, is returned by NewEncoder.
	NewEncoderErr error

	// EncodeOutput computes each window's output. When nil, EncodeBuffer
	// returns no bytes.
	EncodeOutput func(window int, pcm []int16) []byte

	// EncodeErrAt makes EncodeBuffer fail on the given zero-based window
	// index. Negative disables. Ignored when EncodeErr is nil.
	EncodeErrAt int
	EncodeErr   error

	// FlushOutput is returned by Flush.
	FlushOutput []byte

	// FlushErr is returned by Flush.
	FlushErr error

	// NewEncoderCalls records the (channels, sampleRate, bitrate) arguments.
	NewEncoderCalls []EncoderParams

	// Encoders holds every encoder created, in order.
	Encoders []*Encoder
}

// EncoderParams captures the arguments of one NewEncoder call.
type EncoderParams struct {
	Channels    int
	SampleRate  int
	BitrateKbps int
}

var _ codec.Codec = (*Codec)(nil)

// Name implements [codec.Codec].
func (c *Codec) Name() string {
	if c.CodecName == "" {
		return "mock"
	}
	return c.CodecName
}

// Format implements [codec.Codec].
func (c *Codec) Format() codec.Format {
	if c.FormatResult.Name == "" {
		return codec.Format{Name: "mp3", Extension: ".mp3", ContentType: "audio/mpeg"}
	}
	return c.FormatResult
}

// NewEncoder implements [codec.Codec].
func (c *Codec) NewEncoder(channels, sampleRate, bitrateKbps int) (codec.Encoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NewEncoderCalls = append(c.NewEncoderCalls, EncoderParams{channels, sampleRate, bitrateKbps})
	if c.NewEncoderErr != nil {
		return nil, c.NewEncoderErr
	}
	errAt := -1
	if c.EncodeErr != nil {
		errAt = c.EncodeErrAt
	}
	e := &Encoder{
		output:      c.EncodeOutput,
		errAt:       errAt,
		err:         c.EncodeErr,
		flushOutput: c.FlushOutput,
		flushErr:    c.FlushErr,
	}
	c.Encoders = append(c.Encoders, e)
	return e, nil
}

// LastEncoder returns the most recently created encoder, or nil.
func (c *Codec) LastEncoder() *Encoder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Encoders) == 0 {
		return nil
	}
	return c.Encoders[len(c.Encoders)-1]
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

// Encoder is a mock [codec.Encoder] created by [Codec.NewEncoder].
type Encoder struct {
	mu sync.Mutex

	output      func(int, []int16) []byte
	errAt       int
	err         error
	flushOutput []byte
	flushErr    error

	// Windows records a copy of every submitted window, in order.
	Windows [][]int16

	// FlushCalls counts Flush invocations.
	FlushCalls int

	// EncodeAfterFlush counts EncodeBuffer calls made after Flush.
	EncodeAfterFlush int
}

// EncodeBuffer implements [codec.Encoder].
func (e *Encoder) EncodeBuffer(pcm []int16) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FlushCalls > 0 {
		e.EncodeAfterFlush++
	}
	idx := len(e.Windows)
	e.Windows = append(e.Windows, append([]int16(nil), pcm...))
	if idx == e.errAt {
		return nil, e.err
	}
	if e.output == nil {
		return nil, nil
	}
	return e.output(idx, pcm), nil
}

// Flush implements [codec.Encoder].
func (e *Encoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FlushCalls++
	return e.flushOutput, e.flushErr
}

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock [codec.Source].
type Source struct {
	mu sync.Mutex

	// SourceName is returned by Name.
	SourceName string

	// Result is returned by Fetch when Err is nil.
	Result codec.Codec

	// Err is returned by Fetch.
	Err error

	// Block, when non-nil, makes Fetch wait until it is closed or ctx is done.
	Block chan struct{}

	// CallCount records how many times Fetch was called.
	CallCount int
}

var _ codec.Source = (*Source)(nil)

// Name implements [codec.Source].
func (s *Source) Name() string { return s.SourceName }

// Fetch implements [codec.Source].
func (s *Source) Fetch(ctx context.Context) (codec.Codec, error) {
	s.mu.Lock()
	s.CallCount++
	block := s.Block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

// Calls returns the number of Fetch calls so far.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}
