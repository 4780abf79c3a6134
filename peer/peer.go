// File: peer/peer.go
// Package peer defines the router's polymorphic participant abstraction.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Peer binds a socket handle, a local address, and a handler together.
// The router holds only a Peer reference; it never owns the concrete state
// backing the handler, and a Peer never owns its router.

package peer

import (
	"github.com/momentics/l3router/forwarding"
)

// Peer is the capability the router dispatches through. Concrete variants
// (L3Peer, and future control-plane peers) differ only in Handle.
type Peer interface {
	// Socket returns the peer's immutable OS-level handle.
	Socket() uintptr
	// Address returns the peer's local address, or the zero Key if unused.
	Address() forwarding.Key
	// Handle services one readiness event against fm, a non-owning
	// reference to the shared forwarding map.
	Handle(fm *forwarding.Map) error
}
