// File: routerengine/router.go
// Package routerengine implements the readiness-multiplexing Router: it
// owns the kernel readiness facility, the peer table, and drives dispatch.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package routerengine

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/l3router/api"
	"github.com/momentics/l3router/control"
	"github.com/momentics/l3router/forwarding"
	"github.com/momentics/l3router/peer"
	"github.com/momentics/l3router/reactor"
)

// Router owns the readiness facility, the peer table, and the forwarding
// map shared by every registered peer. A Router is not itself safe for
// concurrent ticking from multiple goroutines; the peer-table lock exists
// to let register/unregister run concurrently with a tick, not to let two
// ticks run concurrently.
type Router struct {
	alloc         Allocator
	reactor       reactor.EventReactor
	maxConcurrent int
	waitTimeoutMs int

	mu    sync.Mutex
	peers map[uintptr]peer.Peer

	fm      *forwarding.Map
	metrics *control.MetricsRegistry
}

// New constructs a Router. Fails with api.ErrResources if the readiness
// facility cannot be created.
func New(alloc Allocator, maxConcurrent, waitTimeoutMs int) (*Router, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	rc, err := alloc.NewReactor()
	if err != nil {
		return nil, api.ErrResources
	}
	return &Router{
		alloc:         alloc,
		reactor:       rc,
		maxConcurrent: maxConcurrent,
		waitTimeoutMs: waitTimeoutMs,
		peers:         make(map[uintptr]peer.Peer),
		fm:            forwarding.New(),
		metrics:       control.NewMetricsRegistry(),
	}, nil
}

// ForwardingMap exposes the router's forwarding table to the external
// policy component responsible for populating it.
func (r *Router) ForwardingMap() *forwarding.Map {
	return r.fm
}

// Register subscribes p's socket to the readiness facility and inserts p
// into the peer table, both under the peer-table lock. flags must not
// request write-readiness: doing so is a programming error and panics,
// per the engine's assumption that writes are short and inlined.
func (r *Router) Register(p peer.Peer, flags reactor.EventFlags) error {
	if flags&reactor.EventWrite != 0 {
		panic("routerengine: write-readiness subscription is not supported")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	socket := p.Socket()
	r.peers[socket] = p
	if err := r.reactor.Register(socket, reactor.EventRead, socket); err != nil {
		delete(r.peers, socket)
		return api.ErrResources
	}
	return nil
}

// Unregister removes p from the readiness facility and the peer table,
// unsubscribing first so a concurrent dispatch never observes a peer that
// has already been freed by its owner. Never fails to the caller.
func (r *Router) Unregister(p peer.Peer) {
	socket := p.Socket()

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.reactor.Unregister(socket)
	delete(r.peers, socket)
	r.fm.RemoveSocket(socket)
}

// Run drains one tick of the event loop: it waits on the readiness
// facility, dispatching every returned event, and repeats until a wait
// returns zero events. The first wait is always performed.
func (r *Router) Run() error {
	batch, err := r.alloc.NewEventBatch(r.maxConcurrent)
	if err != nil {
		return api.ErrResources
	}

	for {
		n, err := r.reactor.Wait(batch, r.waitTimeoutMs)
		if err != nil {
			return api.ErrResources
		}
		if n == 0 {
			return nil
		}

		pending := queue.New()
		for i := 0; i < n; i++ {
			pending.Add(batch[i])
		}
		for pending.Length() > 0 {
			ev := pending.Peek().(reactor.Event)
			pending.Remove()
			if err := r.dispatch(ev); err != nil {
				return err
			}
		}
	}
}

// dispatch delivers one event to its owning peer's handler.
func (r *Router) dispatch(ev reactor.Event) error {
	if !r.mu.TryLock() {
		// A concurrent register/unregister is in progress; the descriptor
		// remains level-triggered and will be re-reported on the next wait.
		return nil
	}
	p, ok := r.peers[ev.Fd]
	r.mu.Unlock()

	if !ok {
		return api.NewError(api.ErrCodeNoHandler, "no handler registered for descriptor").WithContext("fd", ev.Fd)
	}

	err := p.Handle(r.fm)
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*api.Error); ok {
		switch apiErr.Code {
		case api.ErrCodeHandlerRead:
			r.metrics.Incr("peers_evicted", 1)
			r.Unregister(p)
			return nil
		case api.ErrCodeInterrupted:
			return err
		}
	}
	// Any other kind is impossible from a well-behaved handler; treat as a
	// defect and surface it, per the dispatch contract.
	return err
}

// Stats reports router-level counters for diagnostics.
func (r *Router) Stats() map[string]any {
	r.mu.Lock()
	registered := len(r.peers)
	r.mu.Unlock()

	r.metrics.Set("registered_peers", registered)
	r.metrics.Set("forwarding_entries", r.fm.Len())
	return r.metrics.GetSnapshot()
}

// Shutdown closes the readiness facility. Satisfies api.GracefulShutdown.
func (r *Router) Shutdown() error {
	return r.reactor.Close()
}

var _ api.GracefulShutdown = (*Router)(nil)
