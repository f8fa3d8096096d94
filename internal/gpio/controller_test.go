package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/schedule"
)

func newTestController(t *testing.T, fake *schedule.Fake) (*Controller, *Simulated) {
	t.Helper()
	backend := NewSimulated()
	c, err := NewController(backend, ControllerDeps{Scheduler: fake})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, backend
}

func TestController_UnregisteredPin(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if _, err := c.Read("ghost"); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("Read = %v, want ErrPinNotRegistered", err)
	}
	if err := c.Write("ghost", true); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("Write = %v, want ErrPinNotRegistered", err)
	}
	if err := c.Toggle("ghost"); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("Toggle = %v, want ErrPinNotRegistered", err)
	}
	if err := c.Blink("ghost", time.Second, 100*time.Millisecond); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("Blink = %v, want ErrPinNotRegistered", err)
	}
	if _, err := c.OnEdge("ghost", func(string, bool) {}); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("OnEdge = %v, want ErrPinNotRegistered", err)
	}
}

func TestController_OutputWriteToggle(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if err := c.RegisterOutput(OutputConfig{Name: "led", Pin: 17}); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	level, err := c.Read("led")
	if err != nil || level {
		t.Fatalf("Read = %v/%v, want false/nil", level, err)
	}

	if err := c.Write("led", true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if level, _ := c.Read("led"); !level {
		t.Error("expected level high after Write(true)")
	}

	if err := c.Toggle("led"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if level, _ := c.Read("led"); level {
		t.Error("expected level low after Toggle")
	}
}

func TestController_WriteToInputRejected(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{Name: "btn", Pin: 4}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	if err := c.Write("btn", true); !errors.Is(err, ErrNotOutput) {
		t.Errorf("Write to input = %v, want ErrNotOutput", err)
	}
}

func TestController_DebounceCollapsesTransitions(t *testing.T) {
	fake := schedule.NewFake()
	c, backend := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{
		Name:     "btn",
		Pin:      4,
		Debounce: 20 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	edges := 0
	if _, err := c.OnEdge("btn", func(name string, level bool) {
		if level {
			edges++
		}
	}); err != nil {
		t.Fatalf("OnEdge: %v", err)
	}

	// Two raw transitions inside the window: contact bounce on press.
	backend.Inject(4, true)
	fake.Advance(5 * time.Millisecond)
	backend.Inject(4, false)
	fake.Advance(2 * time.Millisecond)
	backend.Inject(4, true)

	fake.Advance(20 * time.Millisecond)

	if edges != 1 {
		t.Errorf("delivered press edges = %d, want 1", edges)
	}
}

func TestController_DebounceWindowRestarts(t *testing.T) {
	fake := schedule.NewFake()
	c, backend := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{
		Name:     "btn",
		Pin:      4,
		Debounce: 20 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	edges := 0
	c.OnEdge("btn", func(string, bool) { edges++ }) //nolint:errcheck // registered above

	backend.Inject(4, true)
	// A transition at 15ms restarts the window; nothing fires at 20ms.
	fake.Advance(15 * time.Millisecond)
	backend.Inject(4, false)
	fake.Advance(10 * time.Millisecond)

	if edges != 0 {
		t.Errorf("edges before settle = %d, want 0", edges)
	}

	// The bounced-back level equals the stable one: no edge at all.
	fake.Advance(20 * time.Millisecond)
	if edges != 0 {
		t.Errorf("edges after settle = %d, want 0 (level returned to stable)", edges)
	}
}

func TestController_DebouncedPressAndRelease(t *testing.T) {
	fake := schedule.NewFake()
	c, backend := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{
		Name:     "btn",
		Pin:      4,
		Debounce: 20 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	var levels []bool
	c.OnEdge("btn", func(_ string, level bool) { //nolint:errcheck // registered above
		levels = append(levels, level)
	})

	backend.Inject(4, true)
	fake.Advance(25 * time.Millisecond)
	backend.Inject(4, false)
	fake.Advance(25 * time.Millisecond)

	if len(levels) != 2 || !levels[0] || levels[1] {
		t.Errorf("levels = %v, want [true false]", levels)
	}
}

func TestController_Blink(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if err := c.RegisterOutput(OutputConfig{Name: "led", Pin: 17}); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	if err := c.Blink("led", 100*time.Millisecond, 25*time.Millisecond); err != nil {
		t.Fatalf("Blink: %v", err)
	}

	fake.Advance(25 * time.Millisecond)
	if level, _ := c.Read("led"); !level {
		t.Error("expected high after first blink interval")
	}

	fake.Advance(25 * time.Millisecond)
	if level, _ := c.Read("led"); level {
		t.Error("expected low after second blink interval")
	}

	// After total elapses the level is forced low and stays there.
	fake.Advance(100 * time.Millisecond)
	if level, _ := c.Read("led"); level {
		t.Error("expected low after blink completes")
	}

	fake.Advance(time.Second)
	if level, _ := c.Read("led"); level {
		t.Error("blink kept running after total duration")
	}
}

func TestController_WriteCancelsBlink(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if err := c.RegisterOutput(OutputConfig{Name: "led", Pin: 17}); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	if err := c.Blink("led", time.Second, 50*time.Millisecond); err != nil {
		t.Fatalf("Blink: %v", err)
	}
	if err := c.Write("led", true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fake.Advance(time.Second)
	if level, _ := c.Read("led"); !level {
		t.Error("Write level overridden by a blink that should be cancelled")
	}
}

func TestController_LEDChangeEvents(t *testing.T) {
	fake := schedule.NewFake()
	backend := NewSimulated()
	bus := events.NewBus()

	var changes []events.LEDChange
	bus.Subscribe(events.TypeLEDChanged, func(ev events.Event) {
		changes = append(changes, ev.Payload.(events.LEDChange))
	})

	c, err := NewController(backend, ControllerDeps{Scheduler: fake, Bus: bus})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if err := c.RegisterOutput(OutputConfig{Name: "led", Pin: 17}); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	c.Write("led", true)  //nolint:errcheck // registered above
	c.Write("led", true)  // unchanged: no event
	c.Write("led", false) //nolint:errcheck // registered above

	if len(changes) != 2 {
		t.Fatalf("led.changed events = %d, want 2", len(changes))
	}
	if !changes[0].Level || changes[1].Level {
		t.Errorf("changes = %+v, want [high low]", changes)
	}
}

func TestController_ReRegistrationOverwrites(t *testing.T) {
	fake := schedule.NewFake()
	c, backend := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{Name: "btn", Pin: 4, Debounce: 20 * time.Millisecond}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	// Move the logical name to a different physical pin.
	if err := c.RegisterInput(InputConfig{Name: "btn", Pin: 5, Debounce: 20 * time.Millisecond}); err != nil {
		t.Fatalf("re-RegisterInput: %v", err)
	}

	edges := 0
	c.OnEdge("btn", func(string, bool) { edges++ }) //nolint:errcheck // registered above

	// Old pin transitions no longer reach the logical name.
	backend.Inject(4, true)
	fake.Advance(50 * time.Millisecond)
	if edges != 0 {
		t.Errorf("edges from stale pin = %d, want 0", edges)
	}

	backend.Inject(5, true)
	fake.Advance(50 * time.Millisecond)
	if edges != 1 {
		t.Errorf("edges from new pin = %d, want 1", edges)
	}
}

func TestController_CleanupIdempotent(t *testing.T) {
	fake := schedule.NewFake()
	c, _ := newTestController(t, fake)

	if err := c.RegisterInput(InputConfig{Name: "btn", Pin: 4}); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	if err := c.RegisterOutput(OutputConfig{Name: "led", Pin: 17}); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}

	if _, err := c.Read("btn"); !errors.Is(err, ErrPinNotRegistered) {
		t.Errorf("Read after cleanup = %v, want ErrPinNotRegistered", err)
	}
}
