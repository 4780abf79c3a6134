// File: internal/concurrency/errors.go
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrExecutorClosed indicates the executor has been shut down
	ErrExecutorClosed = errors.New("executor is closed")
)
