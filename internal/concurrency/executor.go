// File: internal/concurrency/executor.go
// Package concurrency implements a task executor with per-worker queues.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines, using lock-free local queues
// and a global queue fallback. A worker runs tasks from its own local queue and
// from the global queue only; it does not take tasks from other workers' queues.
// The lockFreeQueue type is defined in lock_free_queue.go.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/l3router/affinity"
	"github.com/momentics/l3router/api"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	globalQueue chan TaskFunc              // fallback queue for tasks when local queues are full
	localQueues []*lockFreeQueue[TaskFunc] // per-worker lock-free queues
	workers     []*worker                  // worker instances
	closeCh     chan struct{}              // signals executor shutdown
	closed      int32                      // atomic flag: 1 if closed
	numWorkers  int32                      // current number of workers
	numaNode    int                        // NUMA node new workers are pinned to
	mu          sync.Mutex                 // protects resizing operations

	// statistics
	totalTasks     int64
	completedTasks int64
}

// NewExecutor creates a new Executor with the given number of workers and optional NUMA node.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers, numaNode int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		globalQueue: make(chan TaskFunc, numWorkers*4),
		closeCh:     make(chan struct{}),
		numWorkers:  int32(numWorkers),
		numaNode:    numaNode,
	}
	// initialize local queues and workers
	e.localQueues = make([]*lockFreeQueue[TaskFunc], numWorkers)
	e.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		e.localQueues[i] = NewLockFreeQueue[TaskFunc](1024)
	}
	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:         i,
			executor:   e,
			localQueue: e.localQueues[i],
			stopCh:     make(chan struct{}),
		}
		e.workers[i] = w
		go w.run(numaNode)
	}
	return e
}

// Submit enqueues a task for execution, returning ErrExecutorClosed if executor is closed
// and api.ErrResourceExhausted if both the chosen local queue and the global queue are full.
func (e *Executor) Submit(task TaskFunc) error {
	if atomic.LoadInt32(&e.closed) == 1 {
		return ErrExecutorClosed
	}
	atomic.AddInt64(&e.totalTasks, 1)
	// attempt local enqueue based on round-robin ID
	idx := int(atomic.LoadInt64(&e.totalTasks) % int64(e.NumWorkers()))
	if e.localQueues[idx].Enqueue(task) {
		return nil
	}
	// fallback to global queue
	select {
	case e.globalQueue <- task:
		return nil
	case <-e.closeCh:
		return ErrExecutorClosed
	default:
		return api.ErrResourceExhausted
	}
}

// NumWorkers returns the current number of active workers.
func (e *Executor) NumWorkers() int {
	return int(atomic.LoadInt32(&e.numWorkers))
}

// Resize grows or shrinks the worker pool to newCount. Growing spawns fresh
// workers with their own local queues; shrinking stops the highest-indexed
// workers and, once each has exited, moves the tasks still waiting in its
// local queue to the global queue.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 || atomic.LoadInt32(&e.closed) == 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current := len(e.workers)
	switch {
	case newCount > current:
		for i := current; i < newCount; i++ {
			q := NewLockFreeQueue[TaskFunc](1024)
			w := &worker{id: i, executor: e, localQueue: q, stopCh: make(chan struct{})}
			e.localQueues = append(e.localQueues, q)
			e.workers = append(e.workers, w)
			go w.run(e.numaNode)
		}
	case newCount < current:
		for i := newCount; i < current; i++ {
			close(e.workers[i].stopCh)
		}
		for i := newCount; i < current; i++ {
			for atomic.LoadInt32(&e.workers[i].stopped) == 0 {
				time.Sleep(time.Microsecond)
			}
			for task, ok := e.localQueues[i].Dequeue(); ok; task, ok = e.localQueues[i].Dequeue() {
				select {
				case e.globalQueue <- task:
				case <-e.closeCh:
				}
			}
		}
		e.workers = e.workers[:newCount]
		e.localQueues = e.localQueues[:newCount]
	}
	atomic.StoreInt32(&e.numWorkers, int32(newCount))
}

// Close gracefully shuts down the executor and waits for workers to exit.
func (e *Executor) Close() {
	if atomic.CompareAndSwapInt32(&e.closed, 0, 1) {
		close(e.closeCh)
		e.mu.Lock()
		defer e.mu.Unlock()
		for _, w := range e.workers {
			close(w.stopCh)
		}
		for _, w := range e.workers {
			for atomic.LoadInt32(&w.stopped) == 0 {
				time.Sleep(time.Microsecond)
			}
		}
	}
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	return map[string]int64{
		"total_tasks":     atomic.LoadInt64(&e.totalTasks),
		"completed_tasks": atomic.LoadInt64(&e.completedTasks),
		"pending_tasks":   atomic.LoadInt64(&e.totalTasks) - atomic.LoadInt64(&e.completedTasks),
		"num_workers":     int64(e.NumWorkers()),
	}
}

// worker represents a single executor goroutine.
type worker struct {
	id         int
	executor   *Executor
	localQueue *lockFreeQueue[TaskFunc]
	stopCh     chan struct{}
	stopped    int32
}

// run is the main loop for a worker, optionally pinning to numaNode.
func (w *worker) run(numaNode int) {
	defer atomic.StoreInt32(&w.stopped, 1)
	if numaNode >= 0 {
		_ = affinity.SetAffinity(numaNode) // best-effort; unsupported platforms return an error we don't act on
	}
	for {
		select {
		case <-w.stopCh:
			return
		default:
			// try local queue
			if task, ok := w.localQueue.Dequeue(); ok {
				w.executeTask(task)
				continue
			}
			// try global queue
			select {
			case task := <-w.executor.globalQueue:
				w.executeTask(task)
			case <-w.stopCh:
				return
			default:
				// backoff to reduce CPU spinning
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// executeTask runs the task and updates statistics, recovering from panics.
func (w *worker) executeTask(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			// swallow panic to keep worker alive
		}
		atomic.AddInt64(&w.executor.completedTasks, 1)
	}()
	task()
}
