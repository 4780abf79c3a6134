//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP (I/O Completion Port) reactor implementation and factory.

package reactor

import (
	"errors"
	"golang.org/x/sys/windows"
	"unsafe"
)

// windowsReactor is an IOCP-based event reactor.
type windowsReactor struct {
	iocp windows.Handle
}

// NewReactor constructs a new platform-specific EventReactor for Windows.
func NewReactor() (EventReactor, error) {
	port, err := windows.CreateIoCompletionPort(
		windows.InvalidHandle,
		0,
		0,
		0,
	)
	if err != nil {
		return nil, err
	}
	return &windowsReactor{
		iocp: port,
	}, nil
}

// Register associates a handle with IOCP. flags is accepted for interface
// compatibility; IOCP completion notification does not distinguish
// read/write readiness the way epoll does.
func (r *windowsReactor) Register(handle uintptr, flags EventFlags, userData uintptr) error {
	h := windows.Handle(handle)
	_, err := windows.CreateIoCompletionPort(
		h,
		r.iocp,
		userData,
		0,
	)
	return err
}

// Unregister is a no-op: IOCP has no per-handle deregistration short of
// closing the handle itself.
func (r *windowsReactor) Unregister(fd uintptr) error {
	return nil
}

// Wait blocks for IO events and fills output slice.
func (r *windowsReactor) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, errors.New("reactor: empty event buffer")
	}

	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}

	var key uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(r.iocp, nil, &key, &overlapped, timeout)
	if err != nil {
		return 0, err
	}
	events[0] = Event{
		Fd:       uintptr(unsafe.Pointer(overlapped)), // Overlapped pointer (often used as handle context)
		UserData: key,
	}
	return 1, nil
}

// Close closes the IOCP handle.
func (r *windowsReactor) Close() error {
	return windows.CloseHandle(r.iocp)
}
