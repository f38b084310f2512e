// Package codec defines the boundary to optional compressed audio encoders
// and the machinery that makes them available at runtime.
//
// The two primary abstractions are:
//
//   - [Codec]: a factory for single-use, stateful [Encoder] instances.
//   - [Loader]: an idempotent, best-effort gate that obtains a [Codec] from
//     an ordered list of [Source] values (local binaries, mirrors, buckets).
//
// [Encode] drives an [Encoder] over a PCM slice in fixed windows of
// [WindowSize] samples. Concrete codecs live in sub-packages (codec/lame,
// codec/opus).
package codec

import "errors"

// WindowSize is the number of samples submitted to an [Encoder] per call.
// It matches one MPEG-1 Layer III frame.
const WindowSize = 1152

// DefaultBitrateKbps is the target bitrate used when none is configured.
const DefaultBitrateKbps = 128

var (
	// ErrUnavailable reports that no codec could be obtained.
	ErrUnavailable = errors.New("codec: unavailable")

	// ErrNoSources is returned by [ParseSources] for an empty list.
	ErrNoSources = errors.New("codec: no sources configured")

	// ErrUnsupportedSource is returned by [ParseSource] for unknown schemes.
	ErrUnsupportedSource = errors.New("codec: unsupported source")
)

// Format describes the container a [Codec] produces.
type Format struct {
	// Name is the short format identifier used in configuration (e.g. "mp3").
	Name string

	// Extension is the file extension including the leading dot.
	Extension string

	// ContentType is the MIME type of the encoded output.
	ContentType string
}

// Codec is a factory for encoder instances of one compressed format.
//
// Implementations must be safe for concurrent use; the encoders they return
// need not be.
type Codec interface {
	// Name identifies the implementation in logs and metrics (e.g. "lame").
	Name() string

	// Format describes the produced container.
	Format() Format

	// NewEncoder returns a fresh encoder for the given stream parameters.
	// It fails when the parameters are not supported.
	NewEncoder(channels, sampleRate, bitrateKbps int) (Encoder, error)
}

// Encoder is a stateful single-stream encoder. Calls must be sequential:
// every window is submitted in order and Flush is called exactly once at the
// end. An Encoder must not be reused after Flush.
type Encoder interface {
	// EncodeBuffer submits one window of samples and returns any encoded
	// bytes that became ready, which may be none.
	EncodeBuffer(pcm []int16) ([]byte, error)

	// Flush drains buffered encoder state and returns the trailing bytes.
	Flush() ([]byte, error)
}
