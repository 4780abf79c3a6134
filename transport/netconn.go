// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// NetConn adapts a stdlib net.Conn (TCP accept result, or anything else
// satisfying syscall.Conn) to api.NetConn so it can back an L3Peer.

package transport

import (
	"net"
	"syscall"

	"github.com/momentics/l3router/api"
)

// NetConn wraps a net.Conn to satisfy api.NetConn.
type NetConn struct {
	conn net.Conn
}

var _ api.NetConn = (*NetConn)(nil)

// NewNetConn wraps conn.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn}
}

// Read fills buf from the connection.
func (n *NetConn) Read(buf []byte) (int, error) {
	return n.conn.Read(buf)
}

// Write sends buf on the connection.
func (n *NetConn) Write(buf []byte) (int, error) {
	return n.conn.Write(buf)
}

// Close shuts down the connection.
func (n *NetConn) Close() error {
	return n.conn.Close()
}

// RawFD extracts the underlying OS descriptor via SyscallConn. Returns 0
// if the wrapped conn does not expose one.
func (n *NetConn) RawFD() uintptr {
	sc, ok := n.conn.(syscall.Conn)
	if !ok {
		return 0
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0
	}
	var fd uintptr
	raw.Control(func(f uintptr) { fd = f })
	return fd
}
