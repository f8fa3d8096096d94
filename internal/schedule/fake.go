package schedule

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Scheduler for tests. Time only moves when Advance is
// called; due callbacks fire synchronously on the calling goroutine in
// deadline order, so tests are fully deterministic.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	entries map[int]*fakeEntry
}

type fakeEntry struct {
	id       int
	deadline time.Time
	interval time.Duration // zero for one-shot
	fn       func()
}

// NewFake creates a Fake scheduler starting at an arbitrary fixed time.
func NewFake() *Fake {
	return &Fake{
		now:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		entries: make(map[int]*fakeEntry),
	}
}

func (f *Fake) Once(delay time.Duration, fn func()) Handle {
	return f.add(delay, 0, fn)
}

func (f *Fake) Repeat(interval time.Duration, fn func()) Handle {
	return f.add(interval, interval, fn)
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves virtual time forward by d, firing every callback whose
// deadline falls within the window. Callbacks scheduled by other
// callbacks fire too if they come due before the window ends.
// Repeating timers fire once per elapsed interval.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		entry := f.nextDue(target)
		if entry == nil {
			break
		}

		f.now = entry.deadline
		if entry.interval > 0 {
			entry.deadline = entry.deadline.Add(entry.interval)
		} else {
			delete(f.entries, entry.id)
		}

		fn := entry.fn
		f.mu.Unlock()
		fn()
		f.mu.Lock()
	}

	f.now = target
	f.mu.Unlock()
}

// Pending returns the number of scheduled callbacks that have not yet
// fired or been cancelled. Repeating timers count as one.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *Fake) add(delay, interval time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	entry := &fakeEntry{
		id:       f.nextID,
		deadline: f.now.Add(delay),
		interval: interval,
		fn:       fn,
	}
	f.entries[entry.id] = entry

	return &fakeHandle{fake: f, id: entry.id}
}

// nextDue returns the entry with the earliest deadline at or before
// target, breaking ties by registration order. Caller holds f.mu.
func (f *Fake) nextDue(target time.Time) *fakeEntry {
	var due []*fakeEntry
	for _, e := range f.entries {
		if !e.deadline.After(target) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})

	return due[0]
}

type fakeHandle struct {
	fake *Fake
	id   int
}

func (h *fakeHandle) Cancel() {
	h.fake.mu.Lock()
	defer h.fake.mu.Unlock()
	delete(h.fake.entries, h.id)
}
