package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/schedule"
)

// Logger allows injection of a logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InputConfig describes one named input line.
type InputConfig struct {
	// Name is the logical identifier used by all operations.
	Name string

	// Pin is the physical pin number.
	Pin int

	// Debounce is the window a raw level must persist before it is
	// delivered as an edge. Zero delivers raw transitions directly.
	Debounce time.Duration

	// Pull selects the bias resistor.
	Pull Pull
}

// OutputConfig describes one named output line.
type OutputConfig struct {
	Name string
	Pin  int

	// DefaultOn is the level written at registration.
	DefaultOn bool
}

// EdgeFunc receives debounced level changes. level true means the
// line is high.
type EdgeFunc func(name string, level bool)

type inputPin struct {
	cfg      InputConfig
	watchOff func()

	// Debounce state: pending is the most recent raw level, timer the
	// running settle window. stable is the last delivered level.
	stable  bool
	pending bool
	timer   schedule.Handle

	edgeFns map[int]EdgeFunc
}

type outputPin struct {
	cfg   OutputConfig
	level bool

	// blink state; starting a new blink supersedes the running one.
	blinkTicker schedule.Handle
	blinkStop   schedule.Handle
}

// Controller manages named digital lines over a Backend, adding
// debounced edge detection for inputs and level/blink control for
// outputs. Referencing an unregistered name is a configuration error.
type Controller struct {
	backend Backend
	sched   schedule.Scheduler
	bus     *events.Bus
	logger  Logger

	mu      sync.Mutex
	inputs  map[string]*inputPin
	outputs map[string]*outputPin
	nextID  int
	closed  bool
}

// ControllerDeps carries the controller's collaborators.
type ControllerDeps struct {
	Scheduler schedule.Scheduler
	Bus       *events.Bus
	Logger    Logger
}

// NewController opens the backend and returns an empty controller.
func NewController(backend Backend, deps ControllerDeps) (*Controller, error) {
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.New()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}

	if err := backend.Open(); err != nil {
		return nil, err
	}

	return &Controller{
		backend: backend,
		sched:   deps.Scheduler,
		bus:     deps.Bus,
		logger:  deps.Logger,
		inputs:  make(map[string]*inputPin),
		outputs: make(map[string]*outputPin),
	}, nil
}

// RegisterInput configures a named input and begins watching it.
// Re-registration overwrites the previous configuration.
func (c *Controller) RegisterInput(cfg InputConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: input name is required", ErrInvalidConfig)
	}

	if err := c.backend.SetupInput(cfg.Pin, cfg.Pull); err != nil {
		return fmt.Errorf("setting up input %s: %w", cfg.Name, err)
	}

	initial, err := c.backend.Read(cfg.Pin)
	if err != nil {
		return fmt.Errorf("reading initial level of %s: %w", cfg.Name, err)
	}

	c.mu.Lock()
	if old, ok := c.inputs[cfg.Name]; ok {
		c.teardownInput(old)
	}
	pin := &inputPin{
		cfg:     cfg,
		stable:  initial,
		pending: initial,
		edgeFns: make(map[int]EdgeFunc),
	}
	c.inputs[cfg.Name] = pin
	c.mu.Unlock()

	cancel, err := c.backend.Watch(cfg.Pin, func(level bool) {
		c.onRawTransition(cfg.Name, level)
	})
	if err != nil {
		return fmt.Errorf("watching input %s: %w", cfg.Name, err)
	}

	c.mu.Lock()
	pin.watchOff = cancel
	c.mu.Unlock()

	c.logger.Debug("input registered",
		"name", cfg.Name,
		"pin", cfg.Pin,
		"debounce", cfg.Debounce,
		"pull", cfg.Pull,
	)
	return nil
}

// RegisterOutput configures a named output and writes its default
// level. Re-registration overwrites.
func (c *Controller) RegisterOutput(cfg OutputConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: output name is required", ErrInvalidConfig)
	}

	if err := c.backend.SetupOutput(cfg.Pin, cfg.DefaultOn); err != nil {
		return fmt.Errorf("setting up output %s: %w", cfg.Name, err)
	}

	c.mu.Lock()
	if old, ok := c.outputs[cfg.Name]; ok {
		c.cancelBlink(old)
	}
	c.outputs[cfg.Name] = &outputPin{cfg: cfg, level: cfg.DefaultOn}
	c.mu.Unlock()

	c.logger.Debug("output registered", "name", cfg.Name, "pin", cfg.Pin)
	return nil
}

// OnEdge subscribes to debounced level changes on a named input. The
// returned function removes the subscription.
func (c *Controller) OnEdge(name string, fn EdgeFunc) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pin, ok := c.inputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
	}

	c.nextID++
	id := c.nextID
	pin.edgeFns[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if p, ok := c.inputs[name]; ok {
			delete(p.edgeFns, id)
		}
	}, nil
}

// onRawTransition implements the debounce window: the settle timer
// restarts on every raw transition, and only the value that persists
// for the full window is delivered.
func (c *Controller) onRawTransition(name string, level bool) {
	c.mu.Lock()
	pin, ok := c.inputs[name]
	if !ok {
		c.mu.Unlock()
		return
	}

	pin.pending = level

	if pin.cfg.Debounce <= 0 {
		c.mu.Unlock()
		c.settle(name)
		return
	}

	if pin.timer != nil {
		pin.timer.Cancel()
	}
	pin.timer = c.sched.Once(pin.cfg.Debounce, func() {
		c.settle(name)
	})
	c.mu.Unlock()
}

// settle delivers the pending level if it differs from the last
// delivered one.
func (c *Controller) settle(name string) {
	c.mu.Lock()
	pin, ok := c.inputs[name]
	if !ok {
		c.mu.Unlock()
		return
	}
	pin.timer = nil
	if pin.pending == pin.stable {
		c.mu.Unlock()
		return
	}
	pin.stable = pin.pending
	level := pin.stable
	fns := make([]EdgeFunc, 0, len(pin.edgeFns))
	for _, fn := range pin.edgeFns {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	c.logger.Debug("input edge", "name", name, "level", level)

	for _, fn := range fns {
		fn(name, level)
	}
}

// Read returns the current level of a registered pin, input or output.
func (c *Controller) Read(name string) (bool, error) {
	c.mu.Lock()
	if pin, ok := c.inputs[name]; ok {
		level := pin.stable
		c.mu.Unlock()
		return level, nil
	}
	if pin, ok := c.outputs[name]; ok {
		level := pin.level
		c.mu.Unlock()
		return level, nil
	}
	c.mu.Unlock()
	return false, fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
}

// Outputs returns the current level of every registered output,
// keyed by name.
func (c *Controller) Outputs() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	levels := make(map[string]bool, len(c.outputs))
	for name, pin := range c.outputs {
		levels[name] = pin.level
	}
	return levels
}

// Write sets a registered output to the given level, cancelling any
// running blink.
func (c *Controller) Write(name string, level bool) error {
	c.mu.Lock()
	pin, ok := c.outputs[name]
	if !ok {
		c.mu.Unlock()
		if _, isInput := c.inputs[name]; isInput {
			return fmt.Errorf("%w: %s", ErrNotOutput, name)
		}
		return fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
	}
	c.cancelBlink(pin)
	c.mu.Unlock()

	return c.setLevel(name, level)
}

// Toggle inverts a registered output.
func (c *Controller) Toggle(name string) error {
	c.mu.Lock()
	pin, ok := c.outputs[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
	}
	next := !pin.level
	c.mu.Unlock()

	return c.setLevel(name, next)
}

// Blink alternates the output level every interval until total
// elapses, then forces the level low. A new blink supersedes a
// running one.
func (c *Controller) Blink(name string, total, interval time.Duration) error {
	if interval <= 0 || total <= 0 {
		return fmt.Errorf("%w: blink durations must be positive", ErrInvalidConfig)
	}

	c.mu.Lock()
	pin, ok := c.outputs[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
	}
	c.cancelBlink(pin)

	pin.blinkTicker = c.sched.Repeat(interval, func() {
		if err := c.Toggle(name); err != nil {
			c.logger.Warn("blink toggle failed", "name", name, "error", err)
		}
	})
	pin.blinkStop = c.sched.Once(total, func() {
		c.mu.Lock()
		if p, ok := c.outputs[name]; ok {
			c.cancelBlink(p)
		}
		c.mu.Unlock()
		if err := c.setLevel(name, false); err != nil {
			c.logger.Warn("blink final write failed", "name", name, "error", err)
		}
	})
	c.mu.Unlock()

	return nil
}

// setLevel writes the backend and publishes the change.
func (c *Controller) setLevel(name string, level bool) error {
	c.mu.Lock()
	pin, ok := c.outputs[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPinNotRegistered, name)
	}
	physical := pin.cfg.Pin
	changed := pin.level != level
	pin.level = level
	c.mu.Unlock()

	if err := c.backend.Write(physical, level); err != nil {
		return fmt.Errorf("writing output %s: %w", name, err)
	}

	if changed {
		c.bus.Publish(events.TypeLEDChanged, events.LEDChange{Name: name, Level: level})
	}
	return nil
}

// cancelBlink stops a running blink. Caller holds c.mu.
func (c *Controller) cancelBlink(pin *outputPin) {
	if pin.blinkTicker != nil {
		pin.blinkTicker.Cancel()
		pin.blinkTicker = nil
	}
	if pin.blinkStop != nil {
		pin.blinkStop.Cancel()
		pin.blinkStop = nil
	}
}

// teardownInput cancels a pin's watch and timer. Caller holds c.mu.
func (c *Controller) teardownInput(pin *inputPin) {
	if pin.watchOff != nil {
		pin.watchOff()
		pin.watchOff = nil
	}
	if pin.timer != nil {
		pin.timer.Cancel()
		pin.timer = nil
	}
}

// Cleanup stops all watches and timers and releases the backend.
// Idempotent.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, pin := range c.inputs {
		c.teardownInput(pin)
	}
	for _, pin := range c.outputs {
		c.cancelBlink(pin)
	}
	c.inputs = make(map[string]*inputPin)
	c.outputs = make(map[string]*outputPin)
	c.mu.Unlock()

	if err := c.backend.Close(); err != nil {
		return fmt.Errorf("closing gpio backend: %w", err)
	}
	return nil
}
