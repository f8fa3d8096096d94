package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbooth/booth-core/internal/buttons"
	"github.com/openbooth/booth-core/internal/capture"
)

// handleStatus reports the station's operational state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"state":     string(s.capture.State()),
		"strategy":  string(s.capture.StrategyType()),
		"recording": s.capture.Recording(),
		"streaming": s.capture.Streaming(),
	}
	if s.dispatcher != nil {
		status["mode"] = string(s.dispatcher.Mode())
	}
	if s.hub != nil {
		status["ws_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// captureRequest is the body for POST /capture and /capture/multi.
type captureRequest struct {
	Countdown int               `json:"countdown"`
	Sound     bool              `json:"sound"`
	Flash     bool              `json:"flash"`
	Settings  *capture.Settings `json:"settings,omitempty"`

	// Multi-capture fields, ignored by single capture.
	Count      int `json:"count"`
	IntervalMS int `json:"interval_ms"`
}

func (req captureRequest) options() capture.Options {
	return capture.Options{
		Countdown: req.Countdown,
		Sound:     req.Sound,
		Flash:     req.Flash,
		Settings:  req.Settings,
	}
}

// decodeBody decodes an optional JSON request body. An empty body
// leaves the destination at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Countdown < 0 {
		writeBadRequest(w, "countdown must not be negative")
		return
	}

	result, err := s.capture.Capture(r.Context(), req.options())
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCaptureMultiple(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Count < 1 {
		writeBadRequest(w, "count must be at least 1")
		return
	}
	if req.IntervalMS < 0 {
		writeBadRequest(w, "interval_ms must not be negative")
		return
	}

	interval := time.Duration(req.IntervalMS) * time.Millisecond
	results, err := s.capture.CaptureMultiple(r.Context(), req.Count, interval, req.options())
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}

	kind := r.URL.Query().Get("kind")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	records, err := s.repo.List(r.Context(), kind, limit, offset)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	total, err := s.repo.Count(r.Context(), kind)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"records": records,
	})
}

func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}

	id := chi.URLParam(r, "id")
	record, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, capture.ErrRecordNotFound) {
			writeNotFound(w, "capture not found: "+id)
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, capture.ErrRecordNotFound) {
			writeNotFound(w, "capture not found: "+id)
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.capture.StartVideo(r.Context()); err != nil {
		writeCaptureError(w, err)
		return
	}
	if s.dispatcher != nil {
		s.dispatcher.SetMode(buttons.ModeRecording)
	}
	writeJSON(w, http.StatusOK, map[string]any{"recording": true})
}

func (s *Server) handleStopVideo(w http.ResponseWriter, r *http.Request) {
	result, err := s.capture.StopVideo(r.Context())
	if err != nil {
		// The recording may be down even though the stop errored (a
		// force-killed encoder); only then does the mode flip back.
		if s.dispatcher != nil && !s.capture.Recording() {
			s.dispatcher.SetMode(buttons.ModePhoto)
		}
		writeCaptureError(w, err)
		return
	}
	if s.dispatcher != nil {
		s.dispatcher.SetMode(buttons.ModePhoto)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartLiveView(w http.ResponseWriter, r *http.Request) {
	if _, err := s.capture.StartLiveView(r.Context()); err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streaming": true})
}

func (s *Server) handleStopLiveView(w http.ResponseWriter, _ *http.Request) {
	s.capture.StopLiveView()
	writeJSON(w, http.StatusOK, map[string]any{"streaming": false})
}

// settingsRequest is the body for PATCH /settings. Absent fields leave
// the current values untouched.
type settingsRequest struct {
	ISO          string `json:"iso,omitempty"`
	Aperture     string `json:"aperture,omitempty"`
	ShutterSpeed string `json:"shutter_speed,omitempty"`
	WhiteBalance string `json:"white_balance,omitempty"`
	FocusMode    string `json:"focus_mode,omitempty"`
	ImageFormat  string `json:"image_format,omitempty"`
	ImageQuality int    `json:"image_quality,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.capture.GetSettings(r.Context())
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	merged, err := s.capture.UpdateSettings(r.Context(), capture.Settings{
		ISO:          req.ISO,
		Aperture:     req.Aperture,
		ShutterSpeed: req.ShutterSpeed,
		WhiteBalance: req.WhiteBalance,
		FocusMode:    req.FocusMode,
		ImageFormat:  req.ImageFormat,
		ImageQuality: req.ImageQuality,
	})
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

// strategyRequest is the body for POST /strategy.
type strategyRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) handleSwitchStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Strategy == "" {
		writeBadRequest(w, "strategy is required")
		return
	}

	if err := s.capture.SwitchStrategy(r.Context(), capture.StrategyType(req.Strategy)); err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy": req.Strategy,
		"state":    string(s.capture.State()),
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.capture.TestConnection(r.Context()),
		"strategy":  string(s.capture.StrategyType()),
	})
}

// modeRequest is the body for PUT /mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	if s.dispatcher == nil {
		writeUnavailable(w, "button dispatcher not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": string(s.dispatcher.Mode())})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeUnavailable(w, "button dispatcher not configured")
		return
	}

	var req modeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	mode := buttons.Mode(req.Mode)
	if mode != buttons.ModePhoto && mode != buttons.ModeRecording {
		writeBadRequest(w, "mode must be \"photo\" or \"recording\"")
		return
	}

	s.dispatcher.SetMode(mode)
	writeJSON(w, http.StatusOK, map[string]any{"mode": req.Mode})
}

func (s *Server) handleListLEDs(w http.ResponseWriter, _ *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin controller not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leds": s.pins.Outputs()})
}

// ledRequest is the body for PUT /leds/{name}.
type ledRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleSetLED(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin controller not configured")
		return
	}

	var req ledRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.pins.Write(name, req.On); err != nil {
		writeGPIOError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "on": req.On})
}

func (s *Server) handleToggleLED(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin controller not configured")
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.pins.Toggle(name); err != nil {
		writeGPIOError(w, err)
		return
	}
	level, err := s.pins.Read(name)
	if err != nil {
		writeGPIOError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "on": level})
}

// blinkRequest is the body for POST /leds/{name}/blink.
type blinkRequest struct {
	TotalMS    int `json:"total_ms"`
	IntervalMS int `json:"interval_ms"`
}

func (s *Server) handleBlinkLED(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin controller not configured")
		return
	}

	var req blinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	total := time.Duration(req.TotalMS) * time.Millisecond
	interval := time.Duration(req.IntervalMS) * time.Millisecond
	if err := s.pins.Blink(name, total, interval); err != nil {
		writeGPIOError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        name,
		"total_ms":    req.TotalMS,
		"interval_ms": req.IntervalMS,
	})
}

func (s *Server) handleReadButton(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin controller not configured")
		return
	}

	name := chi.URLParam(r, "name")
	level, err := s.pins.Read(name)
	if err != nil {
		writeGPIOError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "level": level})
}

// queryInt parses an integer query parameter, returning the default on
// absence or garbage.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
