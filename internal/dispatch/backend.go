// Package dispatch implements the dispatch backends (spec §4.G): pluggable
// strategies for actually running a target's command and returning its
// result to the scheduler.
package dispatch

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/scheduler"
)

// Backend is a dispatch strategy: dispatch(WorkItem) → Future<Outcome> and
// max_parallel() → int (spec §4.G). Dispatch returns a channel so a
// backend that submits to something slow (an external queue, a subprocess)
// doesn't have to block the caller's goroutine while waiting.
type Backend interface {
	Dispatch(ctx context.Context, item scheduler.WorkItem) (<-chan scheduler.Outcome, error)
	MaxParallel() int
}

// Registry resolves a plan row's `evaluator` column to a Backend,
// following the teacher's registry-of-named-implementations pattern
// (internal/registry.Registry) generalized from runner types to dispatch
// backends.
type Registry struct {
	backends map[string]Backend
	def      string
}

// NewRegistry builds a Registry whose default backend is named def.
func NewRegistry(def string) *Registry {
	return &Registry{backends: map[string]Backend{}, def: def}
}

// Register adds a named backend. Registering the same name twice is a
// programming error, mirroring the teacher's duplicate-registration
// rejection in registry.Registry.
func (r *Registry) Register(name string, b Backend) error {
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("dispatch: backend %q already registered", name)
	}
	r.backends[name] = b
	return nil
}

// Resolve returns the backend named name, or the registry's default
// backend if name is empty.
func (r *Registry) Resolve(name string) (Backend, error) {
	if name == "" {
		name = r.def
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown evaluator backend %q", name)
	}
	return b, nil
}

// Validate checks that the registry's default backend is actually
// registered, mirroring registry.ValidateRegistry's fail-fast check.
func (r *Registry) Validate() error {
	if _, ok := r.backends[r.def]; !ok {
		return fmt.Errorf("dispatch: default backend %q is not registered", r.def)
	}
	return nil
}

// dispatchSync is a small helper the fork, spawn, and external-job backends
// use to turn a blocking evaluation into the channel-based Future the
// Backend contract expects.
func dispatchSync(ctx context.Context, fn func() scheduler.Outcome) <-chan scheduler.Outcome {
	ch := make(chan scheduler.Outcome, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}
