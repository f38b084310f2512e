// Package wsdevice implements [capture.Device] over a WebSocket so that a
// remote peer (a browser page, a phone app, another process) can act as the
// microphone.
//
// Protocol, after the WebSocket handshake:
//
//  1. The device sends the requested [capture.Constraints] as a JSON text
//     message.
//  2. The peer answers with a JSON text hello: {"sample_rate":N,"channels":1}.
//  3. The peer streams binary messages, each one block of little-endian
//     float32 samples.
//
// Text messages after the hello are ignored.
package wsdevice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/capture"
)

// Hello is the peer's stream description.
type Hello struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

const (
	defaultHelloTimeout = 10 * time.Second

	// maxMessageBytes bounds one binary block (1 MiB is 256k samples).
	maxMessageBytes = 1 << 20
)

// Device dials a WebSocket peer for every recording.
type Device struct {
	url          string
	header       http.Header
	helloTimeout time.Duration
}

// Option configures a [Device].
type Option func(*Device)

// WithHeader adds HTTP headers to the handshake, e.g. for authentication.
func WithHeader(h http.Header) Option {
	return func(d *Device) { d.header = h.Clone() }
}

// WithHelloTimeout bounds how long Open waits for the peer's hello.
func WithHelloTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		if timeout > 0 {
			d.helloTimeout = timeout
		}
	}
}

// New returns a Device that dials url (ws:// or wss://).
func New(url string, opts ...Option) *Device {
	d := &Device{url: url, helloTimeout: defaultHelloTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ capture.Device = (*Device)(nil)

// Open implements [capture.Device].
func (d *Device) Open(ctx context.Context, c capture.Constraints, tap func([]float32)) (capture.Stream, error) {
	conn, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{HTTPHeader: d.header})
	if err != nil {
		return nil, fmt.Errorf("wsdevice: dial: %w", err)
	}
	conn.SetReadLimit(maxMessageBytes)

	hello, err := d.handshake(ctx, conn, c)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return nil, err
	}

	s := &stream{conn: conn, rate: hello.SampleRate, done: make(chan struct{})}
	go s.readLoop(tap)

	slog.InfoContext(ctx, "wsdevice: peer connected", "url", d.url, "sample_rate", hello.SampleRate)
	return s, nil
}

func (d *Device) handshake(ctx context.Context, conn *websocket.Conn, c capture.Constraints) (Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, d.helloTimeout)
	defer cancel()

	req, err := json.Marshal(c)
	if err != nil {
		return Hello{}, fmt.Errorf("wsdevice: encode constraints: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
		return Hello{}, fmt.Errorf("wsdevice: send constraints: %w", err)
	}

	typ, msg, err := conn.Read(ctx)
	if err != nil {
		return Hello{}, fmt.Errorf("wsdevice: read hello: %w", err)
	}
	if typ != websocket.MessageText {
		return Hello{}, errors.New("wsdevice: expected text hello, got binary message")
	}
	var h Hello
	if err := json.Unmarshal(msg, &h); err != nil {
		return Hello{}, fmt.Errorf("wsdevice: decode hello: %w", err)
	}
	if h.SampleRate <= 0 {
		return Hello{}, fmt.Errorf("wsdevice: invalid sample rate %d", h.SampleRate)
	}
	if h.Channels != 1 {
		return Hello{}, fmt.Errorf("wsdevice: peer offers %d channels, want 1", h.Channels)
	}
	return h, nil
}

type stream struct {
	conn    *websocket.Conn
	rate    int
	stopped atomic.Bool
	done    chan struct{}
}

func (s *stream) readLoop(tap func([]float32)) {
	defer close(s.done)
	for {
		typ, msg, err := s.conn.Read(context.Background())
		if err != nil {
			if st := websocket.CloseStatus(err); st != websocket.StatusNormalClosure && st != -1 {
				slog.Debug("wsdevice: peer closed", "status", st)
			}
			return
		}
		if typ != websocket.MessageBinary || s.stopped.Load() {
			continue
		}
		tap(audio.Float32sFromBytes(msg))
	}
}

func (s *stream) SampleRate() int { return s.rate }

// Resources detaches the tap, then closes the connection and waits for the
// read loop to exit.
func (s *stream) Resources() []capture.Resource {
	return []capture.Resource{
		{Name: "tap", Release: s.stopTap},
		{Name: "stream", Release: s.close},
	}
}

func (s *stream) stopTap() error {
	if s.stopped.Swap(true) {
		return errors.New("wsdevice: tap already stopped")
	}
	return nil
}

func (s *stream) close() error {
	err := s.conn.Close(websocket.StatusNormalClosure, "recording stopped")
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		return errors.New("wsdevice: read loop did not exit")
	}
	if err != nil {
		return fmt.Errorf("wsdevice: close: %w", err)
	}
	return nil
}
