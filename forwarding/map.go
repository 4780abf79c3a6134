// File: forwarding/map.go
// Package forwarding implements the shared address->socket table consulted
// by every forwarding peer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The key is a fixed-width byte-comparable struct built directly from
// packet header bytes, so a lookup never needs string formatting or an
// intermediate allocation. Values are raw socket handles rather than peer
// references: forwarding must survive the transient absence of a peer and
// must never require the router's peer-table lock to consult.

package forwarding

import "sync"

// Key mirrors the shape of an IPv4 socket address (family, port, address,
// padding) so it can be constructed straight from a datagram's destination
// octets with port zero. Equality is byte-wise via Go's struct comparison.
type Key struct {
	Family uint16
	Port   uint16
	Addr   [4]byte
	_      [8]byte // padding, room for a future address family without reshaping the map
}

// NewKey builds a lookup key for the given IPv4 address and port.
func NewKey(addr [4]byte, port uint16) Key {
	return Key{Family: familyINET, Port: port, Addr: addr}
}

const familyINET = 2 // AF_INET, kept local so this package has no unix build dependency

// Map is a concurrent address->socket table. It is safe for use by multiple
// goroutines; Get is additionally exposed in a try-lock form so a busy
// forwarding peer never blocks waiting on a concurrent Put/Remove.
type Map struct {
	mu      sync.Mutex
	entries map[Key]uintptr
}

// New constructs an empty forwarding map.
func New() *Map {
	return &Map{entries: make(map[Key]uintptr)}
}

// Put inserts or replaces the socket registered for key.
func (m *Map) Put(key Key, socket uintptr) {
	m.mu.Lock()
	m.entries[key] = socket
	m.mu.Unlock()
}

// Get returns the socket registered for key, if any.
func (m *Map) Get(key Key) (uintptr, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[key]
	return s, ok
}

// TryGet behaves like Get but never blocks: if the map is currently locked
// by a concurrent Put/Remove, it reports !acquired instead of waiting, so a
// forwarding peer's hot path can simply drop the packet for this tick and
// try again on the next one.
func (m *Map) TryGet(key Key) (socket uintptr, found bool, acquired bool) {
	if !m.mu.TryLock() {
		return 0, false, false
	}
	defer m.mu.Unlock()
	s, ok := m.entries[key]
	return s, ok, true
}

// Remove deletes the entry for key, if present.
func (m *Map) Remove(key Key) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// RemoveSocket deletes every entry whose value equals socket. It is used to
// scrub the map when the peer owning that socket is unregistered.
func (m *Map) RemoveSocket(socket uintptr) {
	m.mu.Lock()
	for k, v := range m.entries {
		if v == socket {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// Len reports the number of entries currently in the map.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
