package schedule

import (
	"sync"
	"time"
)

// Handle represents a scheduled callback that can be cancelled.
//
// Cancel is idempotent and safe to call after the callback has fired.
// For repeating timers, Cancel stops all future invocations.
type Handle interface {
	Cancel()
}

// Scheduler schedules callbacks to run after a delay or at a fixed
// interval. Implementations must be safe for concurrent use.
//
// Components take a Scheduler rather than calling time.AfterFunc
// directly so that tests can substitute a Fake and control time.
type Scheduler interface {
	// Once runs fn exactly once after delay elapses.
	Once(delay time.Duration, fn func()) Handle

	// Repeat runs fn every interval until the returned handle is
	// cancelled. The first invocation happens after one full interval.
	Repeat(interval time.Duration, fn func()) Handle

	// Now returns the scheduler's view of the current time.
	Now() time.Time
}

// realScheduler implements Scheduler using wall-clock timers.
type realScheduler struct{}

// New creates a Scheduler backed by the time package.
func New() Scheduler {
	return &realScheduler{}
}

func (s *realScheduler) Once(delay time.Duration, fn func()) Handle {
	t := time.AfterFunc(delay, fn)
	return &onceHandle{timer: t}
}

func (s *realScheduler) Repeat(interval time.Duration, fn func()) Handle {
	h := &repeatHandle{done: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-h.done:
				return
			}
		}
	}()

	return h
}

func (s *realScheduler) Now() time.Time {
	return time.Now()
}

type onceHandle struct {
	timer *time.Timer
}

func (h *onceHandle) Cancel() {
	h.timer.Stop()
}

type repeatHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *repeatHandle) Cancel() {
	h.once.Do(func() {
		close(h.done)
	})
}
