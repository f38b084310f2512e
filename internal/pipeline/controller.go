package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voicerec/internal/handoff"
	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/pkg/capture"
	"github.com/MrWong99/voicerec/pkg/codec"
)

// Recorder is the capture side of the pipeline. [*capture.Session]
// satisfies it.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (capture.Recording, error)
	State() capture.State
}

// Reloader retries codec acquisition in the background. [*codec.Loader]
// satisfies it.
type Reloader interface {
	LoadAsync(ctx context.Context) <-chan bool
}

var (
	_ Recorder      = (*capture.Session)(nil)
	_ Reloader      = (*codec.Loader)(nil)
	_ CodecProvider = (*codec.Loader)(nil)
)

// Option configures a [Controller].
type Option func(*Controller)

// WithReloader makes Stop kick off a background codec load whenever a
// recording had to fall back because no codec was available.
func WithReloader(r Reloader) Option {
	return func(c *Controller) { c.reloader = r }
}

// WithMetrics overrides the metrics recorder. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller runs recordings end to end: Start begins capture and Stop
// finalises it into exactly one artifact delivered to the handoff.
//
// All methods are safe for concurrent use and serialised against each other.
type Controller struct {
	mu       sync.Mutex
	rec      Recorder
	policy   Policy
	target   handoff.Handoff
	reloader Reloader
	metrics  *observe.Metrics

	// reloading is set while a background load started by Stop is running.
	reloading atomic.Bool
}

// NewController wires a recorder, an encoding policy and a handoff target.
func NewController(rec Recorder, p Policy, target handoff.Handoff, opts ...Option) *Controller {
	c := &Controller{rec: rec, policy: p, target: target}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Policy returns the current encoding policy.
func (c *Controller) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy replaces the encoding policy. It applies from the next Stop on;
// a recording in progress is not affected until it is stopped.
func (c *Controller) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
}

// Recording reports whether capture is in progress.
func (c *Controller) Recording() bool {
	return c.rec.State() == capture.StateRecording
}

// Start begins a recording. It returns [capture.ErrAlreadyRecording] when one
// is in progress and wraps [capture.ErrDeviceUnavailable] when the input
// cannot be acquired.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	if err := c.rec.Start(ctx); err != nil {
		return fmt.Errorf("pipeline: start: %w", err)
	}
	c.metrics.ActiveSessions.Add(ctx, 1)
	return nil
}

// Stop finalises the recording in progress: capture is torn down, the
// samples are encoded per the policy and the artifact is delivered once.
// The returned error is [capture.ErrNotRecording] when idle, or the handoff's
// error; encoding never fails.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop(ctx)
}

func (c *Controller) stop(ctx context.Context) (out Outcome, err error) {
	ctx, span := observe.StartSpan(ctx, "recording.stop")
	defer func() { observe.EndSpan(span, err) }()

	rec, err := c.rec.Stop(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: stop: %w", err)
	}
	c.metrics.ActiveSessions.Add(ctx, -1)
	c.metrics.CapturedSamples.Add(ctx, int64(len(rec.Samples)))

	start := time.Now()
	out = Encode(ctx, rec.Samples, rec.SampleRate, c.policy)
	c.metrics.RecordRecording(ctx, out.Kind.String(), out.Codec, time.Since(start))
	span.SetAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.String("codec", out.Codec),
		attribute.Int("samples", len(rec.Samples)),
		attribute.Int("sample_rate", rec.SampleRate),
		attribute.Int("bytes", out.Artifact.Size()),
	)

	if errors.Is(out.Reason, codec.ErrUnavailable) {
		c.reload(ctx)
	}

	log := observe.Logger(ctx)
	if err := c.target.Deliver(ctx, out.Artifact); err != nil {
		c.metrics.RecordHandoffError(ctx, c.target.Name())
		log.Error("handoff failed", "target", c.target.Name(), out.Slog(), "err", err)
		return out, fmt.Errorf("pipeline: deliver %s via %s: %w", out.Artifact.Name, c.target.Name(), err)
	}
	log.Info("recording delivered", "target", c.target.Name(), "elapsed", rec.Elapsed, out.Slog())
	return out, nil
}

// reload starts one background load at a time. The load outlives ctx's
// cancellation so a shutdown-triggered stop still warms the codec.
func (c *Controller) reload(ctx context.Context) {
	if c.reloader == nil || !c.reloading.CompareAndSwap(false, true) {
		return
	}
	done := c.reloader.LoadAsync(context.WithoutCancel(ctx))
	go func() {
		ok := <-done
		c.reloading.Store(false)
		observe.Logger(ctx).Debug("background codec load finished", "loaded", ok)
	}()
}

// Toggle stops a recording in progress or starts a new one. started reports
// which of the two happened; out and err are those of Stop when it stopped.
func (c *Controller) Toggle(ctx context.Context) (started bool, out Outcome, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec.State() == capture.StateIdle {
		return true, Outcome{}, c.start(ctx)
	}
	out, err = c.stop(ctx)
	return false, out, err
}

// Close finalises a recording in progress, if any. It is meant for shutdown
// and is a no-op when idle.
func (c *Controller) Close(ctx context.Context) (Outcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec.State() != capture.StateRecording {
		return Outcome{}, false, nil
	}
	out, err := c.stop(ctx)
	return out, true, err
}
