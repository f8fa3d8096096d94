package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/openbooth/booth-core/internal/schedule"
)

// RPIO is the Raspberry Pi Backend over /dev/gpiomem. Raw input edges
// are detected by polling at the configured interval; the memory-mapped
// register access makes each poll cheap.
type RPIO struct {
	pollInterval time.Duration
	sched        schedule.Scheduler

	mu       sync.Mutex
	open     bool
	inputs   map[int]bool // last sampled level
	pollers  map[int]schedule.Handle
	watchers map[int]map[int]func(bool)
	nextID   int
}

// NewRPIO creates the hardware backend. pollInterval bounds input edge
// detection latency.
func NewRPIO(pollInterval time.Duration, sched schedule.Scheduler) *RPIO {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	if sched == nil {
		sched = schedule.New()
	}
	return &RPIO{
		pollInterval: pollInterval,
		sched:        sched,
		inputs:       make(map[int]bool),
		pollers:      make(map[int]schedule.Handle),
		watchers:     make(map[int]map[int]func(bool)),
	}
}

func (r *RPIO) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return nil
	}
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	r.open = true
	return nil
}

func (r *RPIO) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return nil
	}
	for pin, handle := range r.pollers {
		handle.Cancel()
		delete(r.pollers, pin)
	}
	r.watchers = make(map[int]map[int]func(bool))
	r.open = false
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("closing rpio: %w", err)
	}
	return nil
}

func (r *RPIO) SetupInput(pin int, pull Pull) error {
	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		p.PullOff()
	}

	r.mu.Lock()
	r.inputs[pin] = p.Read() == rpio.High
	r.mu.Unlock()
	return nil
}

func (r *RPIO) SetupOutput(pin int, initial bool) error {
	p := rpio.Pin(pin)
	p.Output()
	writeLevel(p, initial)
	return nil
}

func (r *RPIO) Read(pin int) (bool, error) {
	return rpio.Pin(pin).Read() == rpio.High, nil
}

func (r *RPIO) Write(pin int, level bool) error {
	writeLevel(rpio.Pin(pin), level)
	return nil
}

// Watch polls the pin and reports level changes. One poller per
// physical pin serves all watchers.
func (r *RPIO) Watch(pin int, fn func(level bool)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watchers[pin] == nil {
		r.watchers[pin] = make(map[int]func(bool))
	}
	r.nextID++
	id := r.nextID
	r.watchers[pin][id] = fn

	if _, running := r.pollers[pin]; !running {
		r.pollers[pin] = r.sched.Repeat(r.pollInterval, func() {
			r.poll(pin)
		})
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers[pin], id)
		if len(r.watchers[pin]) == 0 {
			if handle, ok := r.pollers[pin]; ok {
				handle.Cancel()
				delete(r.pollers, pin)
			}
		}
	}, nil
}

func (r *RPIO) poll(pin int) {
	level := rpio.Pin(pin).Read() == rpio.High

	r.mu.Lock()
	last, ok := r.inputs[pin]
	if !ok || last == level {
		r.inputs[pin] = level
		r.mu.Unlock()
		return
	}
	r.inputs[pin] = level
	var fns []func(bool)
	for _, fn := range r.watchers[pin] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(level)
	}
}

func writeLevel(p rpio.Pin, level bool) {
	if level {
		p.High()
	} else {
		p.Low()
	}
}
