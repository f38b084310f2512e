// Package mock provides a call-recording [handoff.Handoff] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicerec/internal/handoff"
	"github.com/MrWong99/voicerec/pkg/audio"
)

// Handoff is a mock [handoff.Handoff]. It is safe for concurrent use.
type Handoff struct {
	mu sync.Mutex

	// TargetName is returned by Name. Defaults to "mock".
	TargetName string

	// DeliverErr is returned by every Deliver call.
	DeliverErr error

	// Delivered records every artifact passed to Deliver, in order.
	Delivered []audio.Artifact
}

var _ handoff.Handoff = (*Handoff)(nil)

// Name implements [handoff.Handoff].
func (h *Handoff) Name() string {
	if h.TargetName == "" {
		return "mock"
	}
	return h.TargetName
}

// Deliver implements [handoff.Handoff].
func (h *Handoff) Deliver(_ context.Context, a audio.Artifact) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Delivered = append(h.Delivered, a)
	return h.DeliverErr
}

// Calls returns a copy of the delivered artifacts.
func (h *Handoff) Calls() []audio.Artifact {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]audio.Artifact(nil), h.Delivered...)
}
