package gpio

import (
	"fmt"
	"sync"
)

// Pull selects the input bias resistor.
type Pull string

const (
	PullNone Pull = "none"
	PullUp   Pull = "up"
	PullDown Pull = "down"
)

// Backend abstracts the physical pin layer. Raw edges reported by
// Watch are undebounced; the Controller owns the debounce window.
type Backend interface {
	// Open acquires the underlying hardware. Called once before any
	// pin setup.
	Open() error

	// Close releases all pins. Idempotent.
	Close() error

	// SetupInput configures a physical pin as an input with the given
	// pull bias.
	SetupInput(pin int, pull Pull) error

	// SetupOutput configures a physical pin as an output and writes
	// the initial level.
	SetupOutput(pin int, initial bool) error

	// Read returns the current level of a configured pin.
	Read(pin int) (bool, error)

	// Write sets the level of a configured output pin.
	Write(pin int, level bool) error

	// Watch reports every raw level transition on a configured input
	// pin. The returned function cancels the watch.
	Watch(pin int, fn func(level bool)) (cancel func(), err error)
}

// Simulated is an in-memory Backend for development and tests.
// Inject drives raw transitions as if they came from hardware.
type Simulated struct {
	mu       sync.Mutex
	pins     map[int]bool
	watchers map[int]map[int]func(bool)
	nextID   int
	open     bool
}

// NewSimulated creates an empty simulated backend.
func NewSimulated() *Simulated {
	return &Simulated{
		pins:     make(map[int]bool),
		watchers: make(map[int]map[int]func(bool)),
	}
}

func (s *Simulated) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.watchers = make(map[int]map[int]func(bool))
	return nil
}

func (s *Simulated) SetupInput(pin int, pull Pull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Pull-up inputs idle high.
	s.pins[pin] = pull == PullUp
	return nil
}

func (s *Simulated) SetupOutput(pin int, initial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[pin] = initial
	return nil
}

func (s *Simulated) Read(pin int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := s.pins[pin]
	if !ok {
		return false, fmt.Errorf("%w: physical pin %d", ErrPinNotRegistered, pin)
	}
	return level, nil
}

func (s *Simulated) Write(pin int, level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pins[pin]; !ok {
		return fmt.Errorf("%w: physical pin %d", ErrPinNotRegistered, pin)
	}
	s.pins[pin] = level
	return nil
}

func (s *Simulated) Watch(pin int, fn func(level bool)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pins[pin]; !ok {
		return nil, fmt.Errorf("%w: physical pin %d", ErrPinNotRegistered, pin)
	}

	if s.watchers[pin] == nil {
		s.watchers[pin] = make(map[int]func(bool))
	}
	s.nextID++
	id := s.nextID
	s.watchers[pin][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[pin], id)
	}, nil
}

// Inject simulates a raw electrical transition on an input pin,
// invoking watchers synchronously. No-op if the level is unchanged.
func (s *Simulated) Inject(pin int, level bool) {
	s.mu.Lock()
	if current, ok := s.pins[pin]; !ok || current == level {
		s.mu.Unlock()
		return
	}
	s.pins[pin] = level
	var fns []func(bool)
	for _, fn := range s.watchers[pin] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(level)
	}
}
