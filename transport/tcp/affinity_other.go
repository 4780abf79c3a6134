//go:build !linux && !windows
// +build !linux,!windows

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

// setCPUAffinity is a no-op on platforms without a pinning implementation.
func setCPUAffinity(cpu int) {}
