// File: internal/session/manager.go
// Author: momentics <momentics@gmail.com>
//
// Public session surface and a registry used by TCP peers to track
// per-connection bookkeeping outside the forwarding hot path.

package session

import (
	"sync"
	"time"

	"github.com/momentics/l3router/api"
)

// Session is a single tracked connection's lifecycle handle.
type Session interface {
	// ID returns the session's opaque identifier.
	ID() string
	// Context exposes the session's propagation-aware key/value store.
	Context() api.Context
	// Cancel tears the session down; safe to call more than once.
	Cancel()
	// Done reports session termination.
	Done() <-chan struct{}
	// Deadline returns an optional expiry hint.
	Deadline() (time.Time, bool)
}

// NewContextStore constructs an empty, exported api.Context implementation.
func NewContextStore() *contextStore {
	return newContextStore()
}

// NewSession constructs a new session with the given identifier.
func NewSession(id string) *sessionImpl {
	return newSession(id)
}

// Manager is a mutex-protected registry of active sessions, keyed by ID.
// The shard count is accepted for construction-time compatibility with
// callers sized for concurrent connection churn; the registry itself is a
// single map since session lookups are not on the router's forwarding path.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionImpl
	shards   int
}

// NewManager constructs an empty session manager.
func NewManager(shards int) *Manager {
	if shards <= 0 {
		shards = 1
	}
	return &Manager{
		sessions: make(map[string]*sessionImpl),
		shards:   shards,
	}
}

// Register adds s to the manager, keyed by its ID.
func (m *Manager) Register(s *sessionImpl) {
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
}

// Unregister removes and cancels the session with the given ID, if present.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Cancel()
	}
}

// Range calls fn for every currently registered session.
func (m *Manager) Range(fn func(*sessionImpl)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		fn(s)
	}
}

// Len reports the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
