// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface for cross-platform IO multiplexing.

package reactor

// EventFlags selects which readiness conditions a descriptor is subscribed to.
type EventFlags uint32

const (
	// EventRead subscribes to read-readiness. Every registration implicitly
	// includes EventRead regardless of the flags the caller passes in.
	EventRead EventFlags = 1 << iota
	// EventWrite subscribes to write-readiness. Routers built on this
	// package must never pass EventWrite to Register; see Router.Register.
	EventWrite
)

// EventReactor defines basic reactor operations across OS platforms.
// Implementations are level-triggered: a descriptor that remains readable
// is reported again on every Wait call until it is drained or unregistered.
type EventReactor interface {
	// Register subscribes fd for the given flags and associates userData
	// with it; userData is returned verbatim in Event.UserData.
	Register(fd uintptr, flags EventFlags, userData uintptr) error

	// Unregister removes fd from the readiness set. Unregistering a
	// descriptor that was never registered, or was already removed,
	// is not an error.
	Unregister(fd uintptr) error

	// Wait blocks until events are available, the timeout elapses, or an
	// error occurs, and writes into the output slice. timeoutMs < 0 blocks
	// indefinitely; timeoutMs == 0 polls without blocking. Returns the
	// number of events written, which may be zero on timeout.
	Wait(events []Event, timeoutMs int) (n int, err error)

	// Close cleans up resources (handle/epfd).
	Close() error
}

// Event contains event information returned by Wait call.
type Event struct {
	Fd       uintptr // File descriptor or handle.
	UserData uintptr // User-provided data.
}
