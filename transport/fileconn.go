// File: transport/fileconn.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// FileConn adapts an *os.File (a TUN device, a pipe end, ...) to
// api.NetConn so it can back a peer the same way a TCP NetConn does.

package transport

import (
	"os"

	"github.com/momentics/l3router/api"
)

// FileConn wraps an *os.File to satisfy api.NetConn.
type FileConn struct {
	f *os.File
}

var _ api.NetConn = (*FileConn)(nil)

// NewFileConn wraps f.
func NewFileConn(f *os.File) *FileConn {
	return &FileConn{f: f}
}

// Read fills buf from the file.
func (c *FileConn) Read(buf []byte) (int, error) {
	return c.f.Read(buf)
}

// Write sends buf to the file.
func (c *FileConn) Write(buf []byte) (int, error) {
	return c.f.Write(buf)
}

// Close closes the file.
func (c *FileConn) Close() error {
	return c.f.Close()
}

// RawFD returns the file's OS descriptor.
func (c *FileConn) RawFD() uintptr {
	return c.f.Fd()
}
