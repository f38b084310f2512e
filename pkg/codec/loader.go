package codec

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Source obtains a [Codec] from one location. Fetch may block on network I/O
// and must honour ctx.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch makes the codec available and returns it.
	Fetch(ctx context.Context) (Codec, error)
}

// Guard wraps a fetch attempt, for example with a circuit breaker. A guard
// that refuses the call returns an error without invoking fn.
type Guard interface {
	Execute(fn func() error) error
}

// LoadObserver is notified after every individual source attempt. err is nil
// on success.
type LoadObserver func(source string, err error)

// LoaderOption configures a [Loader].
type LoaderOption func(*Loader)

// WithGuards installs a guard per source, created once by newGuard.
func WithGuards(newGuard func(source string) Guard) LoaderOption {
	return func(l *Loader) {
		l.newGuard = newGuard
	}
}

// WithObserver registers fn to be called after each source attempt.
func WithObserver(fn LoadObserver) LoaderOption {
	return func(l *Loader) {
		l.observe = fn
	}
}

type guardedSource struct {
	src   Source
	guard Guard
}

// Loader makes a [Codec] available from an ordered list of sources. Once a
// source succeeds the codec is kept for the lifetime of the Loader and later
// calls to [Loader.Load] return immediately.
//
// Loader is safe for concurrent use; concurrent loads share one attempt.
type Loader struct {
	sources  []guardedSource
	newGuard func(string) Guard
	observe  LoadObserver

	current atomic.Pointer[loaded]
	group   singleflight.Group
}

type loaded struct {
	codec  Codec
	source string
}

// NewLoader returns a Loader that tries sources in the given order.
func NewLoader(sources []Source, opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	for _, s := range sources {
		gs := guardedSource{src: s}
		if l.newGuard != nil {
			gs.guard = l.newGuard(s.Name())
		}
		l.sources = append(l.sources, gs)
	}
	return l
}

// Current reports the loaded codec without blocking.
func (l *Loader) Current() (Codec, bool) {
	if cur := l.current.Load(); cur != nil {
		return cur.codec, true
	}
	return nil, false
}

// Source returns the name of the source the current codec came from, or ""
// when nothing is loaded.
func (l *Loader) Source() string {
	if cur := l.current.Load(); cur != nil {
		return cur.source
	}
	return ""
}

// Load ensures a codec is available and reports whether one is. It tries the
// sources in order, stopping at the first success. It never returns an error
// and never panics; an exhausted list simply reports false.
func (l *Loader) Load(ctx context.Context) bool {
	if _, ok := l.Current(); ok {
		return true
	}
	v, _, _ := l.group.Do("load", func() (any, error) {
		if _, ok := l.Current(); ok {
			return true, nil
		}
		return l.tryAll(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

// LoadAsync starts [Loader.Load] in the background. The returned channel
// receives the result and is then closed.
func (l *Loader) LoadAsync(ctx context.Context) <-chan bool {
	done := make(chan bool, 1)
	go func() {
		defer close(done)
		done <- l.Load(ctx)
	}()
	return done
}

func (l *Loader) tryAll(ctx context.Context) bool {
	for _, gs := range l.sources {
		if ctx.Err() != nil {
			slog.Debug("codec load cancelled", "err", ctx.Err())
			return false
		}
		c, err := l.fetch(ctx, gs)
		if l.observe != nil {
			l.observe(gs.src.Name(), err)
		}
		if err != nil {
			slog.Debug("codec source failed, trying next", "source", gs.src.Name(), "err", err)
			continue
		}
		l.current.Store(&loaded{codec: c, source: gs.src.Name()})
		slog.Info("codec loaded", "codec", c.Name(), "source", gs.src.Name())
		return true
	}
	slog.Warn("codec unavailable: all sources failed", "sources", len(l.sources))
	return false
}

func (l *Loader) fetch(ctx context.Context, gs guardedSource) (Codec, error) {
	var c Codec
	attempt := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("codec source panicked", "source", gs.src.Name(), "panic", r)
				err = ErrUnavailable
			}
		}()
		c, err = gs.src.Fetch(ctx)
		if err == nil && c == nil {
			err = ErrUnavailable
		}
		return err
	}
	var err error
	if gs.guard == nil {
		err = attempt()
	} else {
		err = gs.guard.Execute(attempt)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
