package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/openbooth/booth-core/internal/buttons"
	"github.com/openbooth/booth-core/internal/capture"
	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/gpio"
	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/infrastructure/logging"
)

// newTestServer builds a server over the simulated strategy and
// simulated GPIO backend, with the event bus wired to the hub the way
// Start() does it.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cfg := config.Default()
	cfg.Booth.OutputDir = t.TempDir()
	cfg.Booth.ThumbnailDir = t.TempDir()

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
	bus := events.NewBus()

	ctrl, err := capture.NewController(cfg, capture.ControllerDeps{Bus: bus})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { ctrl.Close() })

	pins, err := gpio.NewController(gpio.NewSimulated(), gpio.ControllerDeps{Bus: bus})
	if err != nil {
		t.Fatalf("gpio.NewController() error = %v", err)
	}
	t.Cleanup(func() { _ = pins.Cleanup() })
	if err := pins.RegisterOutput(gpio.OutputConfig{Name: "flash", Pin: 27}); err != nil {
		t.Fatalf("RegisterOutput() error = %v", err)
	}

	dispatcher := buttons.NewDispatcher(cfg.Buttons, buttons.DispatcherDeps{
		Pins: pins,
		Bus:  bus,
	})
	t.Cleanup(dispatcher.Close)

	s, err := New(Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     logger,
		Capture:    ctrl,
		Pins:       pins,
		Dispatcher: dispatcher,
		Bus:        bus,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.hub = NewHub(cfg.WebSocket, logger)
	s.busOff = bus.SubscribeAll(func(e events.Event) {
		s.hub.Broadcast(string(e.Type), e.Payload)
	})
	t.Cleanup(s.busOff)

	return s, s.buildRouter()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestHandleStatus(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decode(t, rec, &body)
	if body["strategy"] != "simulated" {
		t.Errorf("strategy = %v, want simulated", body["strategy"])
	}
	if body["state"] != "uninitialized" {
		t.Errorf("state = %v, want uninitialized", body["state"])
	}
	if body["mode"] != "photo" {
		t.Errorf("mode = %v, want photo", body["mode"])
	}
	if body["recording"] != false {
		t.Errorf("recording = %v, want false", body["recording"])
	}
}

func TestHandleCapture(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/capture", captureRequest{Countdown: 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var result capture.Result
	decode(t, rec, &result)
	if result.Path == "" {
		t.Fatal("result path empty")
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("captured file not on disk: %v", err)
	}
}

func TestHandleCapture_NegativeCountdown(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/capture", captureRequest{Countdown: -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCaptureMultiple(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/capture/multi", captureRequest{Count: 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Count   int               `json:"count"`
		Results []*capture.Result `json:"results"`
	}
	decode(t, rec, &body)
	if body.Count != 2 || len(body.Results) != 2 {
		t.Errorf("count = %d, results = %d, want 2, 2", body.Count, len(body.Results))
	}
}

func TestHandleCaptureMultiple_BadCount(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/capture/multi", captureRequest{Count: 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSettings(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/settings", settingsRequest{ISO: "800"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var merged capture.Settings
	decode(t, rec, &merged)
	if merged.ISO != "800" {
		t.Errorf("merged ISO = %q, want 800", merged.ISO)
	}
}

func TestHandleSwitchStrategy(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/strategy", strategyRequest{Strategy: "simulated"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	decode(t, rec, &body)
	if body["state"] != "ready" {
		t.Errorf("state = %v, want ready", body["state"])
	}
}

func TestHandleSwitchStrategy_Unknown(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/strategy", strategyRequest{Strategy: "polaroid"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleTestConnection(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/connection/test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decode(t, rec, &body)
	if body["connected"] != true {
		t.Errorf("connected = %v, want true", body["connected"])
	}
}

func TestHandleVideoLifecycle(t *testing.T) {
	s, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/video/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if got := s.dispatcher.Mode(); got != buttons.ModeRecording {
		t.Errorf("mode after start = %q, want recording", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/video/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if got := s.dispatcher.Mode(); got != buttons.ModePhoto {
		t.Errorf("mode after stop = %q, want photo", got)
	}

	// Stopping again conflicts.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/video/stop", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second stop status = %d, want 409", rec.Code)
	}
}

func TestHandleLiveView(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/liveview/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/liveview/frame", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("frame status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("frame body empty")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/liveview/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", rec.Code)
	}
}

func TestHandleLEDs(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPut, "/api/v1/leds/flash", ledRequest{On: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/leds/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var body struct {
		LEDs map[string]bool `json:"leds"`
	}
	decode(t, rec, &body)
	if !body.LEDs["flash"] {
		t.Error("flash LED not on after set")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/leds/flash/toggle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, want 200", rec.Code)
	}
	var toggled map[string]any
	decode(t, rec, &toggled)
	if toggled["on"] != false {
		t.Errorf("on after toggle = %v, want false", toggled["on"])
	}
}

func TestHandleLEDs_Unknown(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPut, "/api/v1/leds/nonexistent", ledRequest{On: true})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleBlinkLED_BadDurations(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/leds/flash/blink", blinkRequest{TotalMS: 0, IntervalMS: 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleMode(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPut, "/api/v1/mode", modeRequest{Mode: "recording"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/mode", nil)
	var body map[string]any
	decode(t, rec, &body)
	if body["mode"] != "recording" {
		t.Errorf("mode = %v, want recording", body["mode"])
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/mode", modeRequest{Mode: "panorama"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", rec.Code)
	}
}

func TestHandleCaptures_NoRepository(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/captures/", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://kiosk.local" {
		t.Errorf("allow origin = %q, want http://kiosk.local", got)
	}
}
