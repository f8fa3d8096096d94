package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/schedule"
)

// Recorder persists completed captures. Implemented by Repository;
// optional, recording failures never fail a capture.
type Recorder interface {
	Record(ctx context.Context, result *Result, kind string) error
}

// ControllerDeps carries the controller's collaborators.
type ControllerDeps struct {
	Scheduler schedule.Scheduler
	Bus       *events.Bus
	Logger    Logger
	Recorder  Recorder
}

// Controller owns exactly one active capture strategy, drives its
// connection lifecycle, and serialises subprocess-bound operations.
// Overlapping capture, video-start, or live-view-start attempts are
// rejected with ErrBusy rather than queued.
type Controller struct {
	booth   config.BoothConfig
	capture config.CaptureConfig
	sched   schedule.Scheduler
	bus     *events.Bus
	logger  Logger
	repo    Recorder

	mu           sync.Mutex
	strategy     Strategy
	strategyType StrategyType
	state        ConnectionState
	busy         bool
	recording    bool
	liveStream   *Stream

	// reconnect timer is a singleton: a second schedule request while
	// one is pending is a no-op.
	reconnectHandle   schedule.Handle
	reconnectAttempts int
}

// NewController builds a controller with the configured strategy in
// state Uninitialized. Call Initialize to connect.
func NewController(cfg *config.Config, deps ControllerDeps) (*Controller, error) {
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.New()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}

	strategyType := StrategyType(cfg.Capture.Strategy)
	strategy, err := NewStrategy(strategyType, StrategyDeps{
		Booth:     cfg.Booth,
		Capture:   cfg.Capture,
		Scheduler: deps.Scheduler,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Controller{
		booth:        cfg.Booth,
		capture:      cfg.Capture,
		sched:        deps.Scheduler,
		bus:          deps.Bus,
		logger:       deps.Logger,
		repo:         deps.Recorder,
		strategy:     strategy,
		strategyType: strategyType,
		state:        StateUninitialized,
	}, nil
}

// State returns the connection lifecycle state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StrategyType returns the active backend variant.
func (c *Controller) StrategyType() StrategyType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategyType
}

// Capabilities returns the active strategy's capability set.
func (c *Controller) Capabilities() Capabilities {
	return c.currentStrategy().Capabilities()
}

func (c *Controller) currentStrategy() Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategy
}

// Initialize connects the active strategy. Idempotent: a no-op when
// already Ready. On failure with reconnect attempts configured, the
// controller transitions to Reconnecting and retries on a timer.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	wasReconnecting := c.state == StateReconnecting
	c.state = StateInitializing
	strategy := c.strategy
	c.mu.Unlock()

	c.logger.Info("initialising capture strategy", "strategy", strategy.Type())

	if err := strategy.Initialize(ctx); err != nil {
		c.onInitFailure(err)
		return err
	}

	c.onInitSuccess(wasReconnecting)
	return nil
}

// onInitSuccess transitions to Ready and cancels any pending reconnect
// timer, wherever the success was observed.
func (c *Controller) onInitSuccess(wasReconnecting bool) {
	c.mu.Lock()
	c.state = StateReady
	c.reconnectAttempts = 0
	if c.reconnectHandle != nil {
		c.reconnectHandle.Cancel()
		c.reconnectHandle = nil
	}
	strategyType := c.strategyType
	c.mu.Unlock()

	c.logger.Info("capture strategy ready", "strategy", strategyType)

	if wasReconnecting {
		c.bus.Publish(events.TypeConnectionRestored, events.ConnectionChange{
			Strategy: string(strategyType),
			State:    string(StateReady),
		})
	}
}

func (c *Controller) onInitFailure(err error) {
	c.mu.Lock()
	strategyType := c.strategyType
	attempts := c.capture.Reconnect.Attempts
	if attempts > 0 {
		c.state = StateReconnecting
	} else {
		c.state = StateFailed
	}
	state := c.state
	c.mu.Unlock()

	c.logger.Warn("capture strategy initialisation failed",
		"strategy", strategyType,
		"error", err,
		"state", state,
	)

	if state == StateReconnecting {
		c.scheduleReconnect()
		return
	}

	c.bus.Publish(events.TypeConnectionLost, events.ConnectionChange{
		Strategy: string(strategyType),
		State:    string(StateFailed),
	})
}

// scheduleReconnect starts the singleton retry timer. Each tick
// re-attempts initialisation; after the configured attempts the
// controller gives up, transitions to Failed, and publishes a single
// connection-lost event.
func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnectHandle != nil {
		c.mu.Unlock()
		return
	}
	delay := c.capture.ReconnectDelay()
	c.reconnectHandle = c.sched.Repeat(delay, c.reconnectTick)
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled",
		"delay", delay,
		"max_attempts", c.capture.Reconnect.Attempts,
	)
}

func (c *Controller) reconnectTick() {
	c.mu.Lock()
	if c.reconnectHandle == nil || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	strategy := c.strategy
	strategyType := c.strategyType
	maxAttempts := c.capture.Reconnect.Attempts
	c.mu.Unlock()

	c.logger.Info("reconnect attempt", "attempt", attempt, "max", maxAttempts)

	if err := strategy.Initialize(context.Background()); err == nil {
		c.onInitSuccess(true)
		return
	} else if attempt < maxAttempts {
		c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
		return
	}

	c.mu.Lock()
	if c.reconnectHandle != nil {
		c.reconnectHandle.Cancel()
		c.reconnectHandle = nil
	}
	c.state = StateFailed
	c.mu.Unlock()

	c.logger.Error("reconnect attempts exhausted", "attempts", attempt)

	c.bus.Publish(events.TypeConnectionLost, events.ConnectionChange{
		Strategy: string(strategyType),
		State:    string(StateFailed),
	})
}

// SwitchStrategy tears down the current strategy and replaces it with
// a freshly constructed one of the given type, then initialises it.
// The replacement is constructed before the current strategy is torn
// down, so an unknown type leaves the controller untouched; the old
// strategy's cleanup completes before the new one is initialised.
func (c *Controller) SwitchStrategy(ctx context.Context, t StrategyType) error {
	if !c.tryAcquire() {
		return ErrBusy
	}
	defer c.release()

	// Construct the replacement first: an unknown type must not tear
	// down the working strategy.
	strategy, err := NewStrategy(t, StrategyDeps{
		Booth:     c.booth,
		Capture:   c.capture,
		Scheduler: c.sched,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	c.StopLiveView()

	c.mu.Lock()
	if c.reconnectHandle != nil {
		c.reconnectHandle.Cancel()
		c.reconnectHandle = nil
	}
	c.reconnectAttempts = 0
	old := c.strategy
	c.mu.Unlock()

	if err := old.Cleanup(); err != nil {
		c.logger.Warn("strategy cleanup failed during switch", "error", err)
	}

	c.mu.Lock()
	c.strategy = strategy
	c.strategyType = t
	c.state = StateUninitialized
	c.recording = false
	c.liveStream = nil
	c.mu.Unlock()

	c.logger.Info("capture strategy switched", "strategy", t)

	return c.Initialize(ctx)
}

// Capture takes one still image. A positive countdown in opts emits
// one tick event per second before the shutter fires. Rejects with
// ErrBusy if another capture, video start, or live-view start is in
// flight, or while a recording is active.
func (c *Controller) Capture(ctx context.Context, opts Options) (*Result, error) {
	if !c.tryAcquire() {
		return nil, ErrBusy
	}
	defer c.release()

	return c.captureLocked(ctx, opts)
}

// captureLocked performs one capture. Caller holds the busy flag.
func (c *Controller) captureLocked(ctx context.Context, opts Options) (*Result, error) {
	// A recording owns the device for its whole duration, not just the
	// StartVideo call, so stills are rejected until it stops.
	if c.Recording() {
		return nil, ErrBusy
	}

	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	if opts.Countdown > 0 {
		for remaining := opts.Countdown; remaining > 0; remaining-- {
			c.bus.Publish(events.TypeCountdownTick, events.CountdownTick{
				Remaining: remaining,
				Total:     opts.Countdown,
			})
			if err := c.wait(ctx, time.Second); err != nil {
				return nil, err
			}
		}
	}

	captureID := uuid.New().String()
	c.bus.Publish(events.TypeCaptureStarted, events.CaptureStarted{
		CaptureID: captureID,
		Sound:     opts.Sound,
		Flash:     opts.Flash,
	})

	result, err := c.currentStrategy().TakePicture(ctx, opts.Settings)
	if err != nil {
		c.bus.Publish(events.TypeCaptureFailed, events.CaptureFailure{
			CaptureID: captureID,
			Reason:    err.Error(),
		})
		return nil, err
	}
	result.ID = captureID

	c.record(ctx, result, "photo")
	c.bus.Publish(events.TypeCaptureCompleted, result)

	return result, nil
}

// CaptureMultiple takes count stills sequentially, waiting interval
// between shots. Results are returned in call order; the first failure
// aborts the remaining captures.
func (c *Controller) CaptureMultiple(ctx context.Context, count int, interval time.Duration, opts Options) ([]*Result, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: capture count must be at least 1", ErrConfiguration)
	}

	if !c.tryAcquire() {
		return nil, ErrBusy
	}
	defer c.release()

	results := make([]*Result, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			if err := c.wait(ctx, interval); err != nil {
				return nil, err
			}
		}

		result, err := c.captureLocked(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("capture %d of %d: %w", i+1, count, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// StartVideo begins a recording on strategies that support it.
func (c *Controller) StartVideo(ctx context.Context) error {
	if !c.Capabilities().CanRecordVideo {
		return fmt.Errorf("%w: video recording", ErrUnsupportedOperation)
	}

	if !c.tryAcquire() {
		return ErrBusy
	}
	defer c.release()

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.mu.Unlock()

	if err := c.ensureReady(ctx); err != nil {
		return err
	}

	if err := c.currentStrategy().StartVideo(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.recording = true
	c.mu.Unlock()

	c.bus.Publish(events.TypeVideoStarted, nil)
	return nil
}

// StopVideo ends the active recording and returns its result.
func (c *Controller) StopVideo(ctx context.Context) (*Result, error) {
	if !c.Capabilities().CanRecordVideo {
		return nil, fmt.Errorf("%w: video recording", ErrUnsupportedOperation)
	}

	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.recording = false
	c.mu.Unlock()

	result, err := c.currentStrategy().StopVideo(ctx)
	if err != nil {
		// A timeout means the recorder was force-killed: the recording
		// is down, and whatever file it managed to write still gets
		// recorded. Any other failure leaves the recorder possibly
		// alive, so the flag is restored for a retry.
		if errors.Is(err, ErrTimeout) {
			if result != nil {
				c.record(ctx, result, "video")
				c.bus.Publish(events.TypeVideoStopped, result)
			}
			return result, err
		}
		c.mu.Lock()
		c.recording = true
		c.mu.Unlock()
		return nil, err
	}

	c.record(ctx, result, "video")
	c.bus.Publish(events.TypeVideoStopped, result)
	return result, nil
}

// Recording reports whether a video recording is in flight.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Streaming reports whether a live-view stream is active.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveStream != nil && c.liveStream.State() == StreamStreaming
}

// StartLiveView starts the strategy's live-view stream and returns it.
// If a stream is already streaming, the existing one is returned; a
// second is never created.
func (c *Controller) StartLiveView(ctx context.Context) (*Stream, error) {
	if !c.Capabilities().CanLiveView {
		return nil, fmt.Errorf("%w: live view", ErrUnsupportedOperation)
	}

	c.mu.Lock()
	if c.liveStream != nil && c.liveStream.State() == StreamStreaming {
		stream := c.liveStream
		c.mu.Unlock()
		return stream, nil
	}
	c.mu.Unlock()

	if !c.tryAcquire() {
		return nil, ErrBusy
	}
	defer c.release()

	// The recording subprocess holds the device; a concurrent preview
	// pipe would contend for it.
	if c.Recording() {
		return nil, ErrBusy
	}

	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	stream, err := c.currentStrategy().LiveView()
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.liveStream = stream
	c.mu.Unlock()

	c.bus.Publish(events.TypeLiveViewStarted, nil)
	return stream, nil
}

// StopLiveView stops the active stream. No-op when not streaming.
func (c *Controller) StopLiveView() {
	c.mu.Lock()
	stream := c.liveStream
	c.liveStream = nil
	c.mu.Unlock()

	if stream == nil || stream.State() == StreamStopped {
		return
	}

	stream.Stop()
	c.bus.Publish(events.TypeLiveViewStopped, nil)
}

// GetSettings returns the active strategy's settings, initialising
// lazily if the controller is not yet Ready.
func (c *Controller) GetSettings(ctx context.Context) (Settings, error) {
	if err := c.ensureReady(ctx); err != nil {
		return Settings{}, err
	}
	return c.currentStrategy().GetSettings(), nil
}

// UpdateSettings merges partial over the current settings and applies
// them, initialising lazily if needed.
func (c *Controller) UpdateSettings(ctx context.Context, partial Settings) (Settings, error) {
	if err := c.ensureReady(ctx); err != nil {
		return Settings{}, err
	}

	merged, err := c.currentStrategy().UpdateSettings(ctx, partial)
	if err != nil {
		return Settings{}, err
	}

	c.bus.Publish(events.TypeSettingsChanged, merged)
	return merged, nil
}

// TestConnection is a best-effort probe: initialise if needed, then
// check availability. Never returns an error; any failure reads false.
func (c *Controller) TestConnection(ctx context.Context) bool {
	if err := c.ensureReady(ctx); err != nil {
		return false
	}
	return c.currentStrategy().IsAvailable(ctx)
}

// Close tears the controller down: live view stopped, reconnect timer
// cancelled, strategy cleaned up.
func (c *Controller) Close() error {
	c.StopLiveView()

	c.mu.Lock()
	if c.reconnectHandle != nil {
		c.reconnectHandle.Cancel()
		c.reconnectHandle = nil
	}
	strategy := c.strategy
	c.state = StateUninitialized
	c.mu.Unlock()

	return strategy.Cleanup()
}

// ensureReady initialises lazily when the controller is not Ready.
func (c *Controller) ensureReady(ctx context.Context) error {
	c.mu.Lock()
	ready := c.state == StateReady
	c.mu.Unlock()
	if ready {
		return nil
	}
	return c.Initialize(ctx)
}

// tryAcquire claims the single in-flight operation slot.
func (c *Controller) tryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// wait sleeps via the scheduler so tests can drive time with a fake.
func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	ch := make(chan struct{})
	handle := c.sched.Once(d, func() { close(ch) })

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		handle.Cancel()
		return ctx.Err()
	}
}

// record persists a capture best-effort.
func (c *Controller) record(ctx context.Context, result *Result, kind string) {
	if c.repo == nil {
		return
	}
	if err := c.repo.Record(ctx, result, kind); err != nil {
		c.logger.Warn("recording capture to store failed",
			"capture_id", result.ID,
			"error", err,
		)
	}
}
