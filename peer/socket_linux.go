//go:build linux
// +build linux

// File: peer/socket_linux.go
// Author: momentics <momentics@gmail.com>
//
// Raw fd write used to relay a datagram to a resolved destination socket.
// The destination is addressed by descriptor only, never by an owned
// connection object, so the write must go through the kernel directly
// rather than through a Go net.Conn wrapper that would race the real
// owner's Close.

package peer

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/l3router/api"
)

// writeAll writes buf to socket in full, retrying transient EAGAIN and
// EINTR conditions. AccessDenied/BrokenPipe-class failures are promoted to
// api.ErrHandlerRead, causing the caller (the source peer) to be evicted.
func writeAll(socket uintptr, buf []byte) error {
	fd := int(socket)
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EINTR:
				continue
			case unix.EPIPE, unix.EACCES, unix.EBADF:
				// TODO: this evicts the source peer for a destination-side
				// failure it had no part in. Kept as documented behavior;
				// changing it is a deliberate follow-up, not a silent fix.
				return api.NewError(api.ErrCodeHandlerRead, "handler read/write failed").
					WithContext("destination", socket).WithContext("cause", err.Error())
			default:
				continue
			}
		}
		buf = buf[n:]
	}
	return nil
}
