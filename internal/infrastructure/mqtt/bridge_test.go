package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openbooth/booth-core/internal/events"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []queuedPublish
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, queuedPublish{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakePublisher) message(i int) queuedPublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[i]
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBridge_RepublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus()
	bridge := NewBridge(pub, bus, 1, nil)

	bridge.Start()
	defer bridge.Stop()

	bus.Publish(events.TypeCaptureCompleted, map[string]string{"id": "abc"})

	waitFor(t, func() bool { return pub.count() == 1 }, "event never republished")

	msg := pub.message(0)
	if msg.topic != "booth/event/capture.completed" {
		t.Errorf("topic = %q, want booth/event/capture.completed", msg.topic)
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(msg.payload, &envelope); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if envelope.Type != "capture.completed" {
		t.Errorf("envelope type = %q, want capture.completed", envelope.Type)
	}
	if envelope.Timestamp.IsZero() {
		t.Error("envelope timestamp not set")
	}
}

func TestBridge_StopUnsubscribes(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus()
	bridge := NewBridge(pub, bus, 1, nil)

	bridge.Start()
	bus.Publish(events.TypeButtonPressed, events.ButtonPress{Name: "capture"})
	waitFor(t, func() bool { return pub.count() == 1 }, "event never republished")

	bridge.Stop()

	bus.Publish(events.TypeButtonPressed, events.ButtonPress{Name: "capture"})
	time.Sleep(20 * time.Millisecond)

	if got := pub.count(); got != 1 {
		t.Errorf("publishes after Stop = %d, want 1", got)
	}
}

func TestBridge_StartIdempotent(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus()
	bridge := NewBridge(pub, bus, 1, nil)

	bridge.Start()
	bridge.Start()
	defer bridge.Stop()

	bus.Publish(events.TypeLEDChanged, events.LEDChange{Name: "flash", Level: true})

	waitFor(t, func() bool { return pub.count() >= 1 }, "event never republished")
	time.Sleep(20 * time.Millisecond)

	if got := pub.count(); got != 1 {
		t.Errorf("publishes = %d, want 1 (double Start must not double-deliver)", got)
	}
}

func TestBridge_PublishFailureDoesNotBlockBus(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	bus := events.NewBus()
	bridge := NewBridge(pub, bus, 1, nil)

	bridge.Start()
	defer bridge.Stop()

	// The bus delivery must return promptly despite the failing broker.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(events.TypeCountdownTick, events.CountdownTick{Remaining: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bus publish blocked by failing broker")
	}
}

func TestBridge_DropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus()
	bridge := NewBridge(pub, bus, 1, nil)

	// Worker not started: the queue fills and overflow is dropped.
	for i := 0; i < bridgeQueueSize+10; i++ {
		bridge.onEvent(events.Event{
			Type:      events.TypeCountdownTick,
			Timestamp: time.Now(),
			Payload:   events.CountdownTick{Remaining: i},
		})
	}

	if got := bridge.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
}
