//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory. Level-triggered:
// no EPOLLET is set, so a readable descriptor keeps reporting until drained.

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxReactor is an epoll-based event reactor.
type linuxReactor struct {
	epfd int
}

// NewReactor constructs a new platform-specific EventReactor for Linux.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &linuxReactor{epfd: epfd}, nil
}

// Register adds file descriptor to epoll for read-readiness, optionally
// OR'd with write-readiness when the caller explicitly asks for it.
func (r *linuxReactor) Register(fd uintptr, flags EventFlags, udata uintptr) error {
	var mask uint32 = unix.EPOLLIN
	if flags&EventWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	event := &unix.EpollEvent{
		Events: mask,
		Fd:     int32(fd),
	}
	*(*uintptr)(unsafe.Pointer(&event.Pad)) = udata
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), event)
}

// Unregister removes fd from the epoll instance. A descriptor that is
// already gone (closed, or previously unregistered) is not an error.
func (r *linuxReactor) Unregister(fd uintptr) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err == unix.EBADF || err == unix.ENOENT {
		return nil
	}
	return err
}

// Wait waits for epoll events and fills the result into events slice.
func (r *linuxReactor) Wait(events []Event, timeoutMs int) (int, error) {
	rawEvents := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(r.epfd, rawEvents, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			Fd:       uintptr(rawEvents[i].Fd),
			UserData: *(*uintptr)(unsafe.Pointer(&rawEvents[i].Pad)),
		}
	}
	return n, nil
}

// Close closes the epoll instance.
func (r *linuxReactor) Close() error {
	return unix.Close(r.epfd)
}
