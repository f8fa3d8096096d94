package events

import (
	"sync"
	"time"
)

// Type identifies a category of event. The string value doubles as the
// topic suffix when events are bridged to MQTT.
type Type string

// Event types published by Booth Core components.
const (
	// TypeCountdownTick fires once per second while a capture countdown
	// is running. Payload: CountdownTick.
	TypeCountdownTick Type = "countdown.tick"

	// TypeCaptureStarted fires when the shutter actually triggers,
	// after any countdown. Payload: CaptureStarted.
	TypeCaptureStarted Type = "capture.started"

	// TypeCaptureCompleted fires when a capture produces a stored
	// image. Payload: capture.Result.
	TypeCaptureCompleted Type = "capture.completed"

	// TypeCaptureFailed fires when a capture attempt returns an error.
	// Payload: CaptureFailure.
	TypeCaptureFailed Type = "capture.failed"

	// TypeVideoStarted and TypeVideoStopped bracket a video recording.
	TypeVideoStarted Type = "video.started"
	TypeVideoStopped Type = "video.stopped"

	// TypeSettingsChanged fires after a successful settings update.
	// Payload: the merged capture.Settings.
	TypeSettingsChanged Type = "settings.changed"

	// TypeConnectionLost fires when reconnect attempts are exhausted
	// and the controller gives up. TypeConnectionRestored fires when a
	// retry succeeds after at least one failure. Payload: ConnectionChange.
	TypeConnectionLost     Type = "connection.lost"
	TypeConnectionRestored Type = "connection.restored"

	// TypeButtonPressed and TypeButtonReleased fire as physical button
	// edges are dispatched. Payload: ButtonPress.
	TypeButtonPressed  Type = "button.pressed"
	TypeButtonReleased Type = "button.released"

	// TypeLEDChanged fires when an output pin level changes.
	// Payload: LEDChange.
	TypeLEDChanged Type = "led.changed"

	// TypeModeChanged fires when the dispatcher switches between photo
	// and recording mode. Payload: the new mode string.
	TypeModeChanged Type = "mode.changed"

	// TypeLiveViewStarted and TypeLiveViewStopped track the live-view
	// stream lifecycle.
	TypeLiveViewStarted Type = "liveview.started"
	TypeLiveViewStopped Type = "liveview.stopped"
)

// Event is a single occurrence delivered to subscribers.
type Event struct {
	Type      Type
	Timestamp time.Time
	Payload   any
}

// Handler processes one event. Handlers run synchronously on the
// publisher's goroutine; hand off to a channel or goroutine for slow
// work.
type Handler func(Event)

// CountdownTick is the payload for TypeCountdownTick.
type CountdownTick struct {
	Remaining int `json:"remaining"` // seconds until the shutter fires
	Total     int `json:"total"`
}

// CaptureStarted is the payload for TypeCaptureStarted. Sound and
// Flash are side-effect hints for UI and audio subscribers; the
// controller performs neither itself.
type CaptureStarted struct {
	CaptureID string `json:"capture_id"`
	Sound     bool   `json:"sound,omitempty"`
	Flash     bool   `json:"flash,omitempty"`
}

// CaptureFailure is the payload for TypeCaptureFailed.
type CaptureFailure struct {
	CaptureID string `json:"capture_id,omitempty"`
	Reason    string `json:"reason"`
}

// ConnectionChange is the payload for connection events.
type ConnectionChange struct {
	Strategy string `json:"strategy"`
	State    string `json:"state"`
}

// ButtonPress is the payload for button events.
type ButtonPress struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"` // "short" or "long" when known
}

// LEDChange is the payload for TypeLEDChanged.
type LEDChange struct {
	Name  string `json:"name"`
	Level bool   `json:"level"`
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

type subscription struct {
	id      int
	handler Handler
}

// Bus routes events from publishers to subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Type][]subscription
	all    []subscription
	logger Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[Type][]subscription),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for panic reports. Must be called
// before the bus is shared across goroutines.
func (b *Bus) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Subscribe registers handler for events of type t. The returned
// function removes the subscription; it is idempotent.
func (b *Bus) Subscribe(t Type, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[t] = removeSub(b.subs[t], id)
	}
}

// SubscribeAll registers handler for every event regardless of type.
// Used by the MQTT bridge and WebSocket hub.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSub(b.all, id)
	}
}

// Publish delivers an event to all matching subscribers in
// subscription order, then to SubscribeAll subscribers. It returns
// after every handler has run.
func (b *Bus) Publish(t Type, payload any) {
	ev := Event{
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	typed := make([]subscription, len(b.subs[t]))
	copy(typed, b.subs[t])
	all := make([]subscription, len(b.all))
	copy(all, b.all)
	b.mu.RUnlock()

	for _, sub := range typed {
		b.invoke(sub, ev)
	}
	for _, sub := range all {
		b.invoke(sub, ev)
	}
}

// invoke runs one handler, recovering a panic so the remaining
// handlers and the publisher are unaffected.
func (b *Bus) invoke(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", ev.Type,
				"panic", r,
			)
		}
	}()
	sub.handler(ev)
}

func removeSub(subs []subscription, id int) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
