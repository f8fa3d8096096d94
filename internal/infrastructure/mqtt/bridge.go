package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/openbooth/booth-core/internal/events"
)

// bridgeQueueSize bounds the publish backlog. The bus delivers events
// synchronously, so the bridge must never block it; when the queue is
// full events are dropped and counted.
const bridgeQueueSize = 256

// eventEnvelope is the JSON shape republished events take on the wire.
type eventEnvelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Publisher is the slice of the MQTT client the bridge needs.
// Implemented by *Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Bridge republishes every bus event as JSON to booth/event/{type}.
//
// Delivery is decoupled from the bus through a bounded queue drained
// by a single worker goroutine: a slow or disconnected broker costs
// dropped MQTT messages, never a stalled event bus.
type Bridge struct {
	client Publisher
	bus    *events.Bus
	qos    byte
	logger Logger

	queue chan queuedPublish
	off   func()

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
	dropped uint64
}

type queuedPublish struct {
	topic   string
	payload []byte
}

// NewBridge creates a bridge between the event bus and the MQTT
// client. Call Start to begin republishing.
func NewBridge(client Publisher, bus *events.Bus, qos byte, logger Logger) *Bridge {
	return &Bridge{
		client: client,
		bus:    bus,
		qos:    qos,
		logger: logger,
		queue:  make(chan queuedPublish, bridgeQueueSize),
	}
}

// Start subscribes to the bus and launches the publish worker.
// Starting an already started bridge is a no-op.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.done = make(chan struct{})

	b.off = b.bus.SubscribeAll(b.onEvent)

	b.wg.Add(1)
	go b.worker()
}

// Stop unsubscribes from the bus and drains the worker. Queued
// messages not yet published are discarded.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	off := b.off
	b.off = nil
	close(b.done)
	b.mu.Unlock()

	if off != nil {
		off()
	}
	b.wg.Wait()
}

// Dropped returns the number of events discarded because the queue
// was full.
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// onEvent marshals one bus event and enqueues it for publishing.
// Runs on the bus delivery path and must not block.
func (b *Bridge) onEvent(e events.Event) {
	payload, err := json.Marshal(eventEnvelope{
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	})
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("event not republishable as JSON",
				"type", e.Type,
				"error", err,
			)
		}
		return
	}

	msg := queuedPublish{
		topic:   Topics{}.Event(string(e.Type)),
		payload: payload,
	}

	select {
	case b.queue <- msg:
	default:
		b.mu.Lock()
		b.dropped++
		dropped := b.dropped
		b.mu.Unlock()
		if b.logger != nil {
			b.logger.Warn("event bridge queue full, dropping event",
				"type", e.Type,
				"dropped_total", dropped,
			)
		}
	}
}

// worker drains the queue until Stop.
func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case msg := <-b.queue:
			// Events are fire-and-forget: not retained, publish
			// failures logged and dropped.
			if err := b.client.Publish(msg.topic, msg.payload, b.qos, false); err != nil {
				if b.logger != nil {
					b.logger.Warn("event republish failed",
						"topic", msg.topic,
						"error", err,
					)
				}
			}
		}
	}
}
