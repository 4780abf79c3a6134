// File: internal/concurrency/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A min-heap timer wheel implementing api.Scheduler. One goroutine sleeps
// until the earliest pending deadline, fires it, and re-sleeps.

package concurrency

import (
	"container/heap"
	"sync"
	"time"

	"github.com/momentics/l3router/api"
)

// timerTask is one scheduled callback, ordered by deadline.
type timerTask struct {
	deadline int64
	fn       func()
	index    int
	canceled bool
}

// taskHeap is a container/heap.Interface min-heap over timerTask.deadline.
type taskHeap []*timerTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// cancelHandle satisfies api.Cancelable for a scheduled task.
type cancelHandle struct {
	task *timerTask
}

func (c *cancelHandle) Cancel() {
	c.task.canceled = true
}

// Scheduler is a heap-based single-goroutine timer facility.
type Scheduler struct {
	mu     sync.Mutex
	timerQ taskHeap
	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler constructs and starts a Scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	heap.Init(&s.timerQ)
	go s.run()
	return s
}

// Schedule arranges fn to run after delayNanos.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument
	}
	task := &timerTask{deadline: s.Now() + delayNanos, fn: fn}

	s.mu.Lock()
	heap.Push(&s.timerQ, task)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return &cancelHandle{task: task}, nil
}

// Cancel marks c's task canceled; it will be skipped when it comes due.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	h, ok := c.(*cancelHandle)
	if !ok {
		return api.ErrInvalidArgument
	}
	s.mu.Lock()
	h.task.canceled = true
	s.mu.Unlock()
	return nil
}

// monoStart anchors Now to the monotonic clock reading taken at package init.
var monoStart = time.Now()

// Now returns monotonic time in nanoseconds.
func (s *Scheduler) Now() int64 {
	return int64(time.Since(monoStart))
}

// Close stops the scheduler goroutine. Pending tasks never fire.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.timerQ.Len() == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		next := s.timerQ[0]
		wait := time.Duration(next.deadline - s.Now())
		s.mu.Unlock()

		if wait <= 0 {
			s.fireDue()
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
			s.fireDue()
		case <-s.notify:
		case <-s.stop:
			return
		}
	}
}

// fireDue pops and runs every task whose deadline has passed.
func (s *Scheduler) fireDue() {
	now := s.Now()
	for {
		s.mu.Lock()
		if s.timerQ.Len() == 0 || s.timerQ[0].deadline > now {
			s.mu.Unlock()
			return
		}
		task := heap.Pop(&s.timerQ).(*timerTask)
		s.mu.Unlock()

		if !task.canceled {
			task.fn()
		}
	}
}
