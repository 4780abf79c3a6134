// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp provides the accept-loop collaborator for inbound TCP peers.
// The core never sees the listen socket: it only receives the accepted
// connection through ConnHandler and decides what to register.

package tcp

import (
	"fmt"
	"net"
	"os"
)

// ListenerConfig holds configuration for the TCP listener.
type ListenerConfig struct {
	Addr        string         // TCP address to bind (e.g., ":8080")
	WorkerCPUs  []int          // list of CPUs for optional affinity pinning
	ConnHandler func(net.Conn) // invoked once per accepted connection
}

// StartTCPListener opens the TCP listening socket, applies affinity if
// requested, and runs the accept loop. Each accepted connection is handed
// to cfg.ConnHandler on its own goroutine; the collaborator that owns the
// core decides how to wrap it into a peer and register it.
func StartTCPListener(cfg *ListenerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("tcp listen failed: %w", err)
	}
	defer ln.Close()

	if len(cfg.WorkerCPUs) > 0 {
		setCPUAffinity(cfg.WorkerCPUs[0])
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "accept error: %v\n", err)
			continue
		}
		go cfg.ConnHandler(conn)
	}
}

// DialTCP connects to addr for client mode (the --connect flag's collaborator).
func DialTCP(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}
