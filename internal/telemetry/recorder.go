package telemetry

import (
	"sync"
	"time"

	"github.com/openbooth/booth-core/internal/capture"
	"github.com/openbooth/booth-core/internal/events"
)

// Writer is the slice of the InfluxDB client the recorder needs.
// Implemented by *influxdb.Client.
type Writer interface {
	WriteCaptureMetric(boothID, strategy, kind string, durationMS float64, success bool)
	WriteButtonMetric(boothID, button, kind string)
	WriteConnectionMetric(boothID, strategy, state string)
}

// StrategyFunc reports the active capture strategy for tagging.
type StrategyFunc func() string

// Recorder subscribes to the event bus and turns selected events into
// time-series points. It holds no opinion about delivery; the Writer
// is expected to be non-blocking.
type Recorder struct {
	writer   Writer
	bus      *events.Bus
	boothID  string
	strategy StrategyFunc

	mu      sync.Mutex
	started map[string]time.Time // capture ID → start time
	offs    []func()
}

// NewRecorder creates a recorder. Call Start to begin observing.
func NewRecorder(writer Writer, bus *events.Bus, boothID string, strategy StrategyFunc) *Recorder {
	return &Recorder{
		writer:   writer,
		bus:      bus,
		boothID:  boothID,
		strategy: strategy,
		started:  make(map[string]time.Time),
	}
}

// Start subscribes to the capture, button, and connection events the
// recorder cares about.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offs != nil {
		return
	}
	r.offs = []func(){
		r.bus.Subscribe(events.TypeCaptureStarted, r.onCaptureStarted),
		r.bus.Subscribe(events.TypeCaptureCompleted, r.onCaptureCompleted),
		r.bus.Subscribe(events.TypeCaptureFailed, r.onCaptureFailed),
		r.bus.Subscribe(events.TypeVideoStopped, r.onVideoStopped),
		r.bus.Subscribe(events.TypeButtonPressed, r.onButtonPressed),
		r.bus.Subscribe(events.TypeConnectionLost, r.onConnectionChange),
		r.bus.Subscribe(events.TypeConnectionRestored, r.onConnectionChange),
	}
}

// Stop removes all subscriptions.
func (r *Recorder) Stop() {
	r.mu.Lock()
	offs := r.offs
	r.offs = nil
	r.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

func (r *Recorder) strategyTag() string {
	if r.strategy == nil {
		return ""
	}
	return r.strategy()
}

func (r *Recorder) onCaptureStarted(e events.Event) {
	started, ok := e.Payload.(events.CaptureStarted)
	if !ok {
		return
	}
	r.mu.Lock()
	r.started[started.CaptureID] = e.Timestamp
	r.mu.Unlock()
}

// takeStart removes and returns the start time for a capture ID.
// Falls back to zero duration for captures the recorder never saw
// start (subscribed mid-flight).
func (r *Recorder) takeStart(id string, end time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	start, ok := r.started[id]
	if !ok {
		return 0
	}
	delete(r.started, id)
	return float64(end.Sub(start)) / float64(time.Millisecond)
}

func (r *Recorder) onCaptureCompleted(e events.Event) {
	result, ok := e.Payload.(*capture.Result)
	if !ok {
		return
	}
	duration := r.takeStart(result.ID, e.Timestamp)
	r.writer.WriteCaptureMetric(r.boothID, r.strategyTag(), "photo", duration, true)
}

func (r *Recorder) onCaptureFailed(e events.Event) {
	failure, ok := e.Payload.(events.CaptureFailure)
	if !ok {
		return
	}
	duration := r.takeStart(failure.CaptureID, e.Timestamp)
	r.writer.WriteCaptureMetric(r.boothID, r.strategyTag(), "photo", duration, false)
}

func (r *Recorder) onVideoStopped(e events.Event) {
	// Video duration is carried by the result metadata; here only the
	// attempt outcome is recorded.
	r.writer.WriteCaptureMetric(r.boothID, r.strategyTag(), "video", 0, e.Payload != nil)
}

func (r *Recorder) onButtonPressed(e events.Event) {
	press, ok := e.Payload.(events.ButtonPress)
	if !ok {
		return
	}
	r.writer.WriteButtonMetric(r.boothID, press.Name, press.Kind)
}

func (r *Recorder) onConnectionChange(e events.Event) {
	change, ok := e.Payload.(events.ConnectionChange)
	if !ok {
		return
	}
	state := "restored"
	if e.Type == events.TypeConnectionLost {
		state = "lost"
	}
	strategy := change.Strategy
	if strategy == "" {
		strategy = r.strategyTag()
	}
	r.writer.WriteConnectionMetric(r.boothID, strategy, state)
}
