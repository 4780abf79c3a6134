//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>
//
// Package tcp - Linux-specific CPU affinity for the accept loop goroutine.

package tcp

import (
	"fmt"
	"os"
	"runtime"

	"github.com/momentics/l3router/affinity"
)

// setCPUAffinity pins the current OS thread to cpu for the lifetime of the
// accept loop.
func setCPUAffinity(cpu int) {
	runtime.LockOSThread()
	if err := affinity.SetAffinity(cpu); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set CPU affinity: %v\n", err)
	}
}
