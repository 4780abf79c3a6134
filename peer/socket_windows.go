//go:build windows
// +build windows

// File: peer/socket_windows.go
// Author: momentics <momentics@gmail.com>
//
// Raw handle write used to relay a datagram to a resolved destination
// socket on Windows.

package peer

import (
	"golang.org/x/sys/windows"

	"github.com/momentics/l3router/api"
)

// writeAll writes buf to socket in full, retrying transient conditions.
// Access/pipe failures are promoted to api.ErrHandlerRead.
func writeAll(socket uintptr, buf []byte) error {
	h := windows.Handle(socket)
	for len(buf) > 0 {
		var n uint32
		err := windows.WriteFile(h, buf, &n, nil)
		if err != nil {
			switch err {
			case windows.ERROR_IO_PENDING, windows.WSAEWOULDBLOCK:
				continue
			case windows.ERROR_ACCESS_DENIED, windows.ERROR_BROKEN_PIPE, windows.ERROR_NO_DATA:
				// TODO: this evicts the source peer for a destination-side
				// failure it had no part in. Kept as documented behavior;
				// changing it is a deliberate follow-up, not a silent fix.
				return api.NewError(api.ErrCodeHandlerRead, "handler read/write failed").
					WithContext("destination", socket).WithContext("cause", err.Error())
			default:
				return api.NewError(api.ErrCodeHandlerRead, "handler read/write failed").
					WithContext("destination", socket).WithContext("cause", err.Error())
			}
		}
		buf = buf[n:]
	}
	return nil
}
