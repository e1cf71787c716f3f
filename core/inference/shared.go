package inference

import (
	"context"
	"sync"

	"crisislens_server/core/port/out"
)

// =============================================================================
// Shared Zero-Shot Resource
// =============================================================================

// SharedResource lends one zero-shot backend to every classification stage
// so a heavyweight model is loaded once per process instead of once per
// stage. The backend is constructed lazily on first use with double-checked
// locking; a failed construction is retried on the next call.
//
// When the backend is not reentrant, Serialize gates every inference call
// behind a mutex scoped to the call itself, never around a whole pipeline.
type SharedResource struct {
	factory   func() (out.ZeroShotModel, error)
	serialize bool

	mu    sync.RWMutex
	model out.ZeroShotModel

	gate sync.Mutex
}

// NewSharedResource creates a shared resource backed by factory.
func NewSharedResource(factory func() (out.ZeroShotModel, error), serialize bool) *SharedResource {
	return &SharedResource{factory: factory, serialize: serialize}
}

// Classify borrows the backend for one zero-shot call, constructing it first
// if needed.
func (r *SharedResource) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]out.LabelScore, error) {
	model, err := r.acquire()
	if err != nil {
		return nil, err
	}

	if r.serialize {
		r.gate.Lock()
		defer r.gate.Unlock()
	}
	return model.Classify(ctx, text, labels, multiLabel)
}

// Loaded reports whether the backend has been constructed.
func (r *SharedResource) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model != nil
}

func (r *SharedResource) acquire() (out.ZeroShotModel, error) {
	r.mu.RLock()
	model := r.model
	r.mu.RUnlock()
	if model != nil {
		return model, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		return r.model, nil
	}
	model, err := r.factory()
	if err != nil {
		return nil, err
	}
	r.model = model
	return model, nil
}
