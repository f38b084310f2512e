// Package lame drives an external LAME binary as a [codec.Codec].
//
// Each encoder owns one lame process that reads raw signed 16-bit
// little-endian mono PCM from stdin and writes MP3 frames to stdout. Output is
// drained concurrently so that writes to stdin never stall on a full pipe.
package lame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/codec"
)

// ErrEncoderClosed is returned by EncodeBuffer after Flush.
var ErrEncoderClosed = errors.New("lame: encoder already flushed")

// maxStderr bounds how much diagnostic output is kept for error messages.
const maxStderr = 4 << 10

// Format is the container produced by lame.
var Format = codec.Format{Name: "mp3", Extension: ".mp3", ContentType: "audio/mpeg"}

// Codec encodes MP3 with the lame binary at Path.
type Codec struct {
	Path string
}

var _ codec.Codec = (*Codec)(nil)

// New returns a Codec for the executable at path.
func New(path string) *Codec {
	return &Codec{Path: path}
}

// FromBinary adapts [New] to the [codec.Env] factory signature.
func FromBinary(path string) (codec.Codec, error) {
	if path == "" {
		return nil, errors.New("lame: empty binary path")
	}
	return New(path), nil
}

// Name implements [codec.Codec].
func (c *Codec) Name() string { return "lame" }

// Format implements [codec.Codec].
func (c *Codec) Format() codec.Format { return Format }

// Args returns the lame command line for raw mono input at the given rate.
func Args(sampleRate, bitrateKbps int) []string {
	khz := strconv.FormatFloat(float64(sampleRate)/1000, 'f', -1, 64)
	return []string{
		"-r",
		"-s", khz,
		"--bitwidth", "16",
		"--signed",
		"--little-endian",
		"-m", "m",
		"-b", strconv.Itoa(bitrateKbps),
		"-", "-",
	}
}

// NewEncoder starts a lame process. Only mono input is supported.
func (c *Codec) NewEncoder(channels, sampleRate, bitrateKbps int) (codec.Encoder, error) {
	if channels != 1 {
		return nil, fmt.Errorf("lame: %d channels not supported", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("lame: invalid sample rate %d", sampleRate)
	}

	cmd := exec.Command(c.Path, Args(sampleRate, bitrateKbps)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lame: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lame: stdout pipe: %w", err)
	}
	e := &encoder{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	cmd.Stderr = &e.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lame: start %s: %w", c.Path, err)
	}
	go e.drain(stdout)
	return e, nil
}

type encoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	pending bytes.Buffer
	readErr error
	done    chan struct{}

	stderr  limitedBuffer
	flushed bool
}

func (e *encoder) drain(r io.Reader) {
	defer close(e.done)
	buf := make([]byte, 32<<10)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.pending.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.mu.Lock()
				e.readErr = err
				e.mu.Unlock()
			}
			return
		}
	}
}

// take returns and clears whatever output has been read so far.
func (e *encoder) take() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending.Len() == 0 {
		return nil
	}
	out := bytes.Clone(e.pending.Bytes())
	e.pending.Reset()
	return out
}

// EncodeBuffer implements [codec.Encoder].
func (e *encoder) EncodeBuffer(pcm []int16) ([]byte, error) {
	if e.flushed {
		return nil, ErrEncoderClosed
	}
	if _, err := e.stdin.Write(audio.Int16sToBytes(pcm)); err != nil {
		return nil, fmt.Errorf("lame: write pcm: %w%s", err, e.stderr.suffix())
	}
	return e.take(), nil
}

// Flush implements [codec.Encoder]. It closes stdin, waits for the process to
// exit and returns the remaining output.
func (e *encoder) Flush() ([]byte, error) {
	if e.flushed {
		return nil, nil
	}
	e.flushed = true

	closeErr := e.stdin.Close()
	<-e.done
	waitErr := e.cmd.Wait()

	out := e.take()
	e.mu.Lock()
	readErr := e.readErr
	e.mu.Unlock()

	if waitErr != nil {
		return out, fmt.Errorf("lame: process: %w%s", waitErr, e.stderr.suffix())
	}
	if err := errors.Join(closeErr, readErr); err != nil {
		return out, fmt.Errorf("lame: flush: %w", err)
	}
	return out, nil
}

// limitedBuffer keeps the first maxStderr bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := maxStderr - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}

func (b *limitedBuffer) suffix() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return ""
	}
	return ": " + string(bytes.TrimSpace(b.buf.Bytes()))
}
