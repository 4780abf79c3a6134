// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter implementing the api.Affinity interface, delegating to the
//   platform-specific affinity package for CPU pinning.
//
// Package adapters provides glue code between the core API contracts
// and the internal implementation.

package adapters

import (
	"runtime"

	"github.com/momentics/l3router/affinity"
	"github.com/momentics/l3router/api"
)

// AffinityAdapter implements api.Affinity by delegating to affinity.SetAffinity.
// NUMA node is tracked as caller-supplied metadata only: the underlying
// platform call pins by logical CPU, not by NUMA node.
type AffinityAdapter struct {
	currentCPU  int
	currentNUMA int
	pinned      bool
}

// NewAffinityAdapter creates a new AffinityAdapter with no binding.
func NewAffinityAdapter() api.Affinity {
	return &AffinityAdapter{currentCPU: -1, currentNUMA: -1}
}

// Pin locks the calling goroutine to its OS thread and assigns that thread
// to cpuID. numaID is recorded for Get but does not affect the pinning call
// itself.
func (a *AffinityAdapter) Pin(cpuID int, numaID int) error {
	if cpuID < 0 {
		return api.ErrInvalidArgument
	}
	runtime.LockOSThread()
	if err := affinity.SetAffinity(cpuID); err != nil {
		return err
	}
	a.currentCPU = cpuID
	a.currentNUMA = numaID
	a.pinned = true
	return nil
}

// Unpin clears the adapter's recorded binding. The underlying platform
// affinity package exposes no unpin call; a fresh Pin overrides it.
func (a *AffinityAdapter) Unpin() error {
	a.pinned = false
	a.currentCPU = -1
	a.currentNUMA = -1
	return nil
}

// Get returns the currently effective CPU and NUMA IDs for this adapter.
func (a *AffinityAdapter) Get() (cpuID int, numaID int, err error) {
	return a.currentCPU, a.currentNUMA, nil
}
