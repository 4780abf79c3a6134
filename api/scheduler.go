// Package api
// Author: momentics
//
// Scheduler contract for high-precision timed and event-driven job execution.

package api

// Cancelable is a handle returned by Scheduler.Schedule that can later be
// passed to Scheduler.Cancel.
type Cancelable interface {
    // Cancel marks the scheduled callback so it will not run.
    Cancel()
}

// Scheduler abstracts event/timer scheduling for async/highload loops.
type Scheduler interface {
    // Schedule schedules a callback to be executed after delayNanos.
    Schedule(delayNanos int64, fn func()) (Cancelable, error)

    // Cancel cancels a previously scheduled callback.
    Cancel(c Cancelable) error

    // Now returns monotonic time in nanoseconds.
    Now() int64
}
