package buttons

import (
	"context"
	"sync"
	"time"

	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/gpio"
	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/schedule"
)

// Mode selects which action a button press resolves to. The capture
// button takes a photo in photo mode and stops the recording in
// recording mode; the binding is explicit here rather than swapped
// closures so behaviour stays auditable.
type Mode string

const (
	// ModeAny matches regardless of the current mode. Checked only
	// after an exact mode match fails.
	ModeAny Mode = "*"

	ModePhoto     Mode = "photo"
	ModeRecording Mode = "recording"
)

// PressKind distinguishes the two press gestures.
type PressKind string

const (
	PressShort PressKind = "short"
	PressLong  PressKind = "long"
)

// Action is a button handler. Errors are caught by the dispatcher,
// logged, and signalled on the error LED; they never propagate.
// Actions run on the pin event path and should hand long work off.
type Action func(ctx context.Context) error

// Pins is the slice of the pin controller the dispatcher needs.
// Implemented by *gpio.Controller.
type Pins interface {
	RegisterInput(cfg gpio.InputConfig) error
	OnEdge(name string, fn gpio.EdgeFunc) (func(), error)
	Blink(name string, total, interval time.Duration) error
}

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

// errorBlink parameters for failed action handlers.
const (
	errorBlinkTotal    = 2 * time.Second
	errorBlinkInterval = 200 * time.Millisecond
)

type actionKey struct {
	button string
	kind   PressKind
	mode   Mode
}

// buttonState tracks one logical button between press and release.
type buttonState struct {
	cfg config.ButtonConfig

	// activeLow: pull-up inputs idle high, so the pressed level is low.
	activeLow bool

	held     bool
	consumed bool // long-press fired; release must not fire short
	timer    schedule.Handle
	edgeOff  func()
}

// DispatcherDeps carries the dispatcher's collaborators.
type DispatcherDeps struct {
	Pins      Pins
	Scheduler schedule.Scheduler
	Bus       *events.Bus
	Logger    Logger

	// ErrorLED is the output blinked when an action fails. Empty
	// disables the indicator.
	ErrorLED string
}

// Dispatcher turns debounced pin edges into short- and long-press
// actions. On press it starts the long-press timer; release before the
// timer fires the short action, the timer firing while held fires the
// long action and suppresses the short one on release.
type Dispatcher struct {
	pins      Pins
	sched     schedule.Scheduler
	bus       *events.Bus
	logger    Logger
	errorLED  string
	longPress time.Duration

	mu      sync.Mutex
	mode    Mode
	buttons map[string]*buttonState
	actions map[actionKey]Action
}

// NewDispatcher creates a dispatcher with no buttons registered.
func NewDispatcher(cfg config.ButtonsConfig, deps DispatcherDeps) *Dispatcher {
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.New()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}

	longPress := cfg.LongPressThreshold()
	if longPress <= 0 {
		longPress = 2 * time.Second
	}

	return &Dispatcher{
		pins:      deps.Pins,
		sched:     deps.Scheduler,
		bus:       deps.Bus,
		logger:    deps.Logger,
		errorLED:  deps.ErrorLED,
		longPress: longPress,
		mode:      ModePhoto,
		buttons:   make(map[string]*buttonState),
		actions:   make(map[actionKey]Action),
	}
}

// Register configures the pin for one logical button and subscribes to
// its edges. Re-registration overwrites.
func (d *Dispatcher) Register(cfg config.ButtonConfig) error {
	pull := gpio.Pull(cfg.Pull)
	if err := d.pins.RegisterInput(gpio.InputConfig{
		Name:     cfg.Name,
		Pin:      cfg.Pin,
		Debounce: time.Duration(cfg.DebounceMS) * time.Millisecond,
		Pull:     pull,
	}); err != nil {
		return err
	}

	state := &buttonState{
		cfg:       cfg,
		activeLow: pull == gpio.PullUp,
	}

	d.mu.Lock()
	if old, ok := d.buttons[cfg.Name]; ok && old.edgeOff != nil {
		old.edgeOff()
	}
	d.buttons[cfg.Name] = state
	d.mu.Unlock()

	off, err := d.pins.OnEdge(cfg.Name, d.onEdge)
	if err != nil {
		return err
	}

	d.mu.Lock()
	state.edgeOff = off
	d.mu.Unlock()

	d.logger.Info("button registered",
		"name", cfg.Name,
		"pin", cfg.Pin,
		"active_low", state.activeLow,
	)
	return nil
}

// Bind associates an action with a button, press kind, and mode. Use
// ModeAny for mode-independent actions. Rebinding overwrites.
func (d *Dispatcher) Bind(button string, kind PressKind, mode Mode, action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[actionKey{button: button, kind: kind, mode: mode}] = action
}

// SetMode switches the action-resolution mode and publishes the
// change.
func (d *Dispatcher) SetMode(mode Mode) {
	d.mu.Lock()
	if d.mode == mode {
		d.mu.Unlock()
		return
	}
	d.mode = mode
	d.mu.Unlock()

	d.logger.Info("dispatch mode changed", "mode", mode)
	d.bus.Publish(events.TypeModeChanged, string(mode))
}

// Mode returns the current action-resolution mode.
func (d *Dispatcher) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// onEdge handles one debounced pin transition.
func (d *Dispatcher) onEdge(name string, level bool) {
	d.mu.Lock()
	state, ok := d.buttons[name]
	if !ok {
		d.mu.Unlock()
		return
	}

	pressed := level != state.activeLow

	if pressed {
		if state.held {
			d.mu.Unlock()
			return
		}
		state.held = true
		state.consumed = false
		state.timer = d.sched.Once(d.longPress, func() {
			d.onLongPress(name)
		})
		d.mu.Unlock()

		d.bus.Publish(events.TypeButtonPressed, events.ButtonPress{Name: name})
		return
	}

	if !state.held {
		d.mu.Unlock()
		return
	}
	state.held = false
	if state.timer != nil {
		state.timer.Cancel()
		state.timer = nil
	}
	fireShort := !state.consumed
	state.consumed = false
	d.mu.Unlock()

	d.bus.Publish(events.TypeButtonReleased, events.ButtonPress{Name: name})

	if fireShort {
		d.dispatch(name, PressShort)
	}
}

// onLongPress fires when the threshold elapses with the button still
// held. The release that follows must not also fire the short action.
func (d *Dispatcher) onLongPress(name string) {
	d.mu.Lock()
	state, ok := d.buttons[name]
	if !ok || !state.held {
		d.mu.Unlock()
		return
	}
	state.consumed = true
	state.timer = nil
	d.mu.Unlock()

	d.dispatch(name, PressLong)
}

// dispatch resolves and runs the bound action for the current mode.
func (d *Dispatcher) dispatch(name string, kind PressKind) {
	d.mu.Lock()
	mode := d.mode
	action, ok := d.actions[actionKey{button: name, kind: kind, mode: mode}]
	if !ok {
		action, ok = d.actions[actionKey{button: name, kind: kind, mode: ModeAny}]
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("no action bound",
			"button", name,
			"kind", kind,
			"mode", mode,
		)
		return
	}

	d.run(name, kind, action)
}

// run executes one action, containing errors and panics. A failure is
// logged and signalled on the error LED; it never reaches the pin
// event path.
func (d *Dispatcher) run(name string, kind PressKind, action Action) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("button action panicked",
				"button", name,
				"kind", kind,
				"panic", r,
			)
			d.signalError()
		}
	}()

	if err := action(context.Background()); err != nil {
		d.logger.Error("button action failed",
			"button", name,
			"kind", kind,
			"error", err,
		)
		d.signalError()
	}
}

func (d *Dispatcher) signalError() {
	if d.errorLED == "" {
		return
	}
	if err := d.pins.Blink(d.errorLED, errorBlinkTotal, errorBlinkInterval); err != nil {
		d.logger.Warn("error indicator blink failed", "error", err)
	}
}

// Close cancels pending long-press timers and edge subscriptions.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, state := range d.buttons {
		if state.timer != nil {
			state.timer.Cancel()
			state.timer = nil
		}
		if state.edgeOff != nil {
			state.edgeOff()
			state.edgeOff = nil
		}
	}
	d.buttons = make(map[string]*buttonState)
}
