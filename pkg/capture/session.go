package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// State is the lifecycle state of a [Session].
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithTickHandler registers fn to receive the elapsed counter on every tick
// while recording. fn runs on the ticker goroutine and must not block.
func WithTickHandler(fn func(elapsed time.Duration)) Option {
	return func(s *Session) { s.onTick = fn }
}

// WithTickInterval overrides the one-second tick. Each tick advances the
// elapsed counter by d.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithConstraints overrides [DefaultConstraints]. Channels is always forced
// to 1.
func WithConstraints(c Constraints) Option {
	return func(s *Session) {
		c.Channels = 1
		if c.BlockSize <= 0 {
			c.BlockSize = DefaultBlockSize
		}
		s.constraints = c
	}
}

// Session captures one recording at a time from a [Device].
//
// Start and Stop are serialised; State, Elapsed and Blocks never block.
type Session struct {
	dev          Device
	constraints  Constraints
	onTick       func(time.Duration)
	tickInterval time.Duration

	// lifecycle serialises Start and Stop.
	lifecycle  sync.Mutex
	state      atomic.Int32
	stream     Stream
	stopTicker context.CancelFunc
	tickerDone chan struct{}
	elapsed    atomic.Int64

	bufMu     sync.Mutex
	bufs      []audio.SampleBuffer
	accepting bool
}

// NewSession returns an idle session that records from dev.
func NewSession(dev Device, opts ...Option) *Session {
	s := &Session{
		dev:          dev,
		constraints:  DefaultConstraints(),
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Elapsed returns the tick counter of the current recording.
func (s *Session) Elapsed() time.Duration { return time.Duration(s.elapsed.Load()) }

// Blocks returns how many blocks the current recording holds.
func (s *Session) Blocks() int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return len(s.bufs)
}

// Start acquires the device and begins buffering. Device failures are
// returned wrapping [ErrDeviceUnavailable] and leave the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateIdle {
		return ErrAlreadyRecording
	}

	s.bufMu.Lock()
	s.bufs = nil
	s.accepting = true
	s.bufMu.Unlock()

	stream, err := s.dev.Open(ctx, s.constraints, s.tap)
	if err != nil {
		s.bufMu.Lock()
		s.accepting = false
		s.bufs = nil
		s.bufMu.Unlock()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.stream = stream
	s.elapsed.Store(0)
	s.state.Store(int32(StateRecording))

	tickCtx, cancel := context.WithCancel(context.Background())
	s.stopTicker = cancel
	s.tickerDone = make(chan struct{})
	go s.tick(tickCtx, s.tickerDone)

	slog.InfoContext(ctx, "capture started",
		"sample_rate", stream.SampleRate(),
		"block_size", s.constraints.BlockSize,
	)
	return nil
}

// tap stores a private copy of block. Blocks that arrive outside a
// recording are dropped.
func (s *Session) tap(block []float32) {
	buf := make(audio.SampleBuffer, len(block))
	copy(buf, block)

	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if !s.accepting {
		return
	}
	s.bufs = append(s.bufs, buf)
}

func (s *Session) tick(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d := time.Duration(s.elapsed.Add(int64(s.tickInterval)))
			if s.onTick != nil {
				s.onTick(d)
			}
		}
	}
}

// Stop ends the recording and returns everything captured, including an
// empty recording when no block arrived. Every stream resource is released
// even when others fail; release failures are logged, not returned.
func (s *Session) Stop(ctx context.Context) (Recording, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateRecording {
		return Recording{}, ErrNotRecording
	}
	s.state.Store(int32(StateStopping))

	s.bufMu.Lock()
	s.accepting = false
	s.bufMu.Unlock()

	s.stopTicker()
	<-s.tickerDone

	stream := s.stream
	if err := release(ctx, stream.Resources()); err != nil {
		slog.WarnContext(ctx, "capture teardown incomplete", "err", err)
	}

	s.bufMu.Lock()
	bufs := s.bufs
	s.bufs = nil
	s.bufMu.Unlock()

	rec := Recording{
		Samples:    audio.Merge(bufs),
		SampleRate: stream.SampleRate(),
		Blocks:     len(bufs),
		Elapsed:    s.Elapsed(),
	}

	s.stream = nil
	s.stopTicker = nil
	s.tickerDone = nil
	s.elapsed.Store(0)
	s.state.Store(int32(StateIdle))

	slog.InfoContext(ctx, "capture stopped",
		"blocks", rec.Blocks,
		"samples", len(rec.Samples),
		"elapsed", rec.Elapsed,
	)
	return rec, nil
}

// release calls every resource's Release in order. A failing or panicking
// resource does not prevent the rest from being released.
func release(ctx context.Context, resources []Resource) error {
	var errs []error
	for _, r := range resources {
		if r.Release == nil {
			continue
		}
		if err := releaseOne(r); err != nil {
			slog.WarnContext(ctx, "capture: release failed", "resource", r.Name, "err", err)
			errs = append(errs, fmt.Errorf("release %s: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}

func releaseOne(r Resource) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Release()
}

// FormatElapsed renders d as zero-padded mm:ss. Minutes are not wrapped at
// an hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
