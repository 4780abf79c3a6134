// File: routerengine/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Allocator isolates the two allocation points the router's construction
// and run loop depend on, so tests can inject failure without faking the
// kernel readiness facility itself.

package routerengine

import "github.com/momentics/l3router/reactor"

// Allocator supplies the router's readiness facility and per-tick event
// batch. A real Allocator simply calls through to the platform reactor and
// make(); a test Allocator can fail on demand.
type Allocator interface {
	// NewReactor constructs the readiness facility.
	NewReactor() (reactor.EventReactor, error)
	// NewEventBatch returns a scratch slice of length n for one Wait call.
	NewEventBatch(n int) ([]reactor.Event, error)
}

// defaultAllocator is the production Allocator: a real platform reactor and
// ordinary heap allocation for the event batch.
type defaultAllocator struct{}

// NewDefaultAllocator returns the production Allocator.
func NewDefaultAllocator() Allocator {
	return defaultAllocator{}
}

func (defaultAllocator) NewReactor() (reactor.EventReactor, error) {
	return reactor.NewReactor()
}

func (defaultAllocator) NewEventBatch(n int) ([]reactor.Event, error) {
	return make([]reactor.Event, n), nil
}
