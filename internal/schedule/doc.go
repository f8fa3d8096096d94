// Package schedule provides timer scheduling for Booth Core.
//
// All time-based behaviour in the application (capture countdowns,
// reconnect backoff, debounce windows, long-press detection, LED
// blinking) goes through the Scheduler interface rather than the time
// package directly. This keeps every component that depends on timers
// deterministic under test: production code uses the wall-clock
// implementation returned by New, tests inject a Fake and advance
// virtual time explicitly.
//
// # Usage
//
//	sched := schedule.New()
//	handle := sched.Once(2*time.Second, func() {
//	    logger.Info("countdown complete")
//	})
//	// ...
//	handle.Cancel() // safe to call after firing
//
// Repeating timers work the same way:
//
//	handle := sched.Repeat(500*time.Millisecond, blinkLED)
//
// # Testing
//
//	fake := schedule.NewFake()
//	component := NewComponent(fake)
//	fake.Advance(2 * time.Second) // fires due callbacks synchronously
//
// # Thread Safety
//
// Both implementations are safe for concurrent use.
package schedule
