// Package audio holds the sample types, the float-to-PCM conversion and the
// lossless WAV container used by the capture-and-encode pipeline.
//
// Everything in this package is pure: no I/O, no goroutines, no logging.
// The compressed encoders live in pkg/codec; capture lives in pkg/capture.
package audio

// SampleBuffer is one block of normalised mono samples in the range [-1, 1],
// as delivered by a single processing tick of a capture device. A buffer is
// never mutated after it has been appended to a session.
type SampleBuffer []float32

// Artifact is the finished file handed to an upload collaborator. It is
// immutable once produced.
type Artifact struct {
	// Name is the file name including extension (e.g. "recording.wav").
	Name string

	// ContentType is the MIME type of Data (e.g. "audio/mpeg").
	ContentType string

	// Data is the complete encoded file.
	Data []byte
}

// Size returns the payload length in bytes.
func (a Artifact) Size() int {
	return len(a.Data)
}
