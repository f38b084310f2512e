package codec_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicerec/pkg/codec"
	"github.com/MrWong99/voicerec/pkg/codec/mock"
)

var errFetch = errors.New("fetch failed")

func TestLoader_TriesSourcesInOrder(t *testing.T) {
	t.Parallel()
	want := &mock.Codec{CodecName: "second"}
	first := &mock.Source{SourceName: "first", Err: errFetch}
	second := &mock.Source{SourceName: "second", Result: want}
	third := &mock.Source{SourceName: "third", Result: &mock.Codec{CodecName: "third"}}

	var attempts []string
	l := codec.NewLoader([]codec.Source{first, second, third},
		codec.WithObserver(func(source string, err error) {
			attempts = append(attempts, source)
		}))

	if !l.Load(context.Background()) {
		t.Fatal("Load returned false")
	}
	got, ok := l.Current()
	if !ok || got != want {
		t.Fatalf("Current = %v, %v; want second codec", got, ok)
	}
	if l.Source() != "second" {
		t.Errorf("Source = %q, want second", l.Source())
	}
	if third.Calls() != 0 {
		t.Errorf("third source fetched %d times, want 0", third.Calls())
	}
	if len(attempts) != 2 || attempts[0] != "first" || attempts[1] != "second" {
		t.Errorf("attempts = %v, want [first second]", attempts)
	}
}

func TestLoader_Idempotent(t *testing.T) {
	t.Parallel()
	src := &mock.Source{SourceName: "only", Result: &mock.Codec{}}
	l := codec.NewLoader([]codec.Source{src})

	for i := 0; i < 3; i++ {
		if !l.Load(context.Background()) {
			t.Fatalf("Load #%d returned false", i)
		}
	}
	if src.Calls() != 1 {
		t.Errorf("Fetch calls = %d, want 1", src.Calls())
	}
}

func TestLoader_AllFail(t *testing.T) {
	t.Parallel()
	a := &mock.Source{SourceName: "a", Err: errFetch}
	b := &mock.Source{SourceName: "b", Err: errFetch}
	l := codec.NewLoader([]codec.Source{a, b})

	if l.Load(context.Background()) {
		t.Fatal("Load returned true with all sources failing")
	}
	if _, ok := l.Current(); ok {
		t.Error("Current reports a codec after failed load")
	}
	if a.Calls() != 1 || b.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.Calls(), b.Calls())
	}

	// A later attempt retries the list.
	l.Load(context.Background())
	if a.Calls() != 2 {
		t.Errorf("retry calls = %d, want 2", a.Calls())
	}
}

func TestLoader_NoSources(t *testing.T) {
	t.Parallel()
	l := codec.NewLoader(nil)
	if l.Load(context.Background()) {
		t.Fatal("Load returned true with no sources")
	}
}

func TestLoader_NilCodecIsFailure(t *testing.T) {
	t.Parallel()
	l := codec.NewLoader([]codec.Source{&mock.Source{SourceName: "nil"}})
	if l.Load(context.Background()) {
		t.Fatal("Load accepted a nil codec")
	}
}

type panicSource struct{}

func (panicSource) Name() string { return "panic" }
func (panicSource) Fetch(context.Context) (codec.Codec, error) {
	panic("mirror exploded")
}

func TestLoader_RecoversPanickingSource(t *testing.T) {
	t.Parallel()
	good := &mock.Source{SourceName: "good", Result: &mock.Codec{}}
	l := codec.NewLoader([]codec.Source{panicSource{}, good})
	if !l.Load(context.Background()) {
		t.Fatal("Load returned false")
	}
	if l.Source() != "good" {
		t.Errorf("Source = %q, want good", l.Source())
	}
}

func TestLoader_ConcurrentLoadsShareAttempt(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	src := &mock.Source{SourceName: "slow", Result: &mock.Codec{}, Block: block}
	l := codec.NewLoader([]codec.Source{src})

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.Load(context.Background())
		}()
	}
	// Give the goroutines a moment to pile up behind the first attempt.
	time.Sleep(20 * time.Millisecond)
	close(block)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("Load #%d returned false", i)
		}
	}
	if src.Calls() != 1 {
		t.Errorf("Fetch calls = %d, want 1", src.Calls())
	}
}

func TestLoader_LoadAsync(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	l := codec.NewLoader([]codec.Source{&mock.Source{SourceName: "net", Result: &mock.Codec{}, Block: block}})

	done := l.LoadAsync(context.Background())
	if _, ok := l.Current(); ok {
		t.Fatal("codec available before fetch completed")
	}
	close(block)

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("async load reported false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async load did not finish")
	}
	if _, ok := l.Current(); !ok {
		t.Error("codec not available after async load")
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	t.Parallel()
	src := &mock.Source{SourceName: "a", Result: &mock.Codec{}}
	l := codec.NewLoader([]codec.Source{src})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if l.Load(ctx) {
		t.Fatal("Load succeeded with cancelled context")
	}
	if src.Calls() != 0 {
		t.Errorf("Fetch calls = %d, want 0", src.Calls())
	}
}

// denyGuard refuses every call.
type denyGuard struct{ calls *int }

func (g denyGuard) Execute(func() error) error {
	*g.calls++
	return errors.New("denied")
}

func TestLoader_GuardSkipsSource(t *testing.T) {
	t.Parallel()
	guarded := &mock.Source{SourceName: "flaky", Result: &mock.Codec{CodecName: "flaky"}}
	open := &mock.Source{SourceName: "open", Result: &mock.Codec{CodecName: "open"}}

	denied := 0
	l := codec.NewLoader([]codec.Source{guarded, open},
		codec.WithGuards(func(source string) codec.Guard {
			if source == "flaky" {
				return denyGuard{calls: &denied}
			}
			return nil
		}))

	if !l.Load(context.Background()) {
		t.Fatal("Load returned false")
	}
	if l.Source() != "open" {
		t.Errorf("Source = %q, want open", l.Source())
	}
	if guarded.Calls() != 0 {
		t.Errorf("guarded source fetched %d times, want 0", guarded.Calls())
	}
	if denied != 1 {
		t.Errorf("guard consulted %d times, want 1", denied)
	}
}
