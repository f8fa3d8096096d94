package events

import (
	"sync"
	"testing"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(TypeCaptureCompleted, func(ev Event) {
		received = append(received, ev)
	})

	bus.Publish(TypeCaptureCompleted, "payload")

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != TypeCaptureCompleted {
		t.Errorf("expected type %q, got %q", TypeCaptureCompleted, received[0].Type)
	}
	if received[0].Payload != "payload" {
		t.Errorf("expected payload %q, got %v", "payload", received[0].Payload)
	}
	if received[0].Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe(TypeCaptureStarted, func(Event) {
		count++
	})

	bus.Publish(TypeCaptureCompleted, nil)
	bus.Publish(TypeButtonPressed, nil)

	if count != 0 {
		t.Errorf("expected 0 deliveries for non-matching types, got %d", count)
	}

	bus.Publish(TypeCaptureStarted, nil)
	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 1; i <= 5; i++ {
		n := i
		bus.Subscribe(TypeCountdownTick, func(Event) {
			order = append(order, n)
		})
	}

	bus.Publish(TypeCountdownTick, nil)

	for i, n := range order {
		if n != i+1 {
			t.Fatalf("expected handlers in subscription order, got %v", order)
		}
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var types []Type
	bus.SubscribeAll(func(ev Event) {
		types = append(types, ev.Type)
	})

	bus.Publish(TypeCaptureStarted, nil)
	bus.Publish(TypeButtonPressed, nil)

	if len(types) != 2 {
		t.Fatalf("expected 2 events, got %d", len(types))
	}
	if types[0] != TypeCaptureStarted || types[1] != TypeButtonPressed {
		t.Errorf("unexpected types: %v", types)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(TypeCaptureStarted, func(Event) {
		count++
	})

	bus.Publish(TypeCaptureStarted, nil)
	unsubscribe()
	bus.Publish(TypeCaptureStarted, nil)

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}

	// Idempotent.
	unsubscribe()
}

func TestBus_PanicRecovery(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TypeCaptureFailed, func(Event) {
		panic("handler exploded")
	})

	survived := false
	bus.Subscribe(TypeCaptureFailed, func(Event) {
		survived = true
	})

	bus.Publish(TypeCaptureFailed, nil)

	if !survived {
		t.Error("expected handler after panicking handler to still run")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(TypeCountdownTick, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(TypeCountdownTick, nil)
			}
		}()
	}
	wg.Wait()

	if count != 1000 {
		t.Errorf("expected 1000 deliveries, got %d", count)
	}
}
