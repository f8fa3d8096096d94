package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Capture operations
		r.Post("/capture", s.handleCapture)
		r.Post("/capture/multi", s.handleCaptureMultiple)

		// Capture log
		r.Route("/captures", func(r chi.Router) {
			r.Get("/", s.handleListCaptures)
			r.Get("/{id}", s.handleGetCapture)
			r.Delete("/{id}", s.handleDeleteCapture)
		})

		// Video recording
		r.Post("/video/start", s.handleStartVideo)
		r.Post("/video/stop", s.handleStopVideo)

		// Live view
		r.Route("/liveview", func(r chi.Router) {
			r.Post("/start", s.handleStartLiveView)
			r.Post("/stop", s.handleStopLiveView)
			r.Get("/frame", s.handleLiveViewFrame)
			r.Get("/stream", s.handleLiveViewStream)
		})

		// Camera settings and strategy
		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handleUpdateSettings)
		r.Post("/strategy", s.handleSwitchStrategy)
		r.Post("/connection/test", s.handleTestConnection)

		// Dispatch mode
		r.Get("/mode", s.handleGetMode)
		r.Put("/mode", s.handleSetMode)

		// GPIO
		r.Route("/leds", func(r chi.Router) {
			r.Get("/", s.handleListLEDs)
			r.Put("/{name}", s.handleSetLED)
			r.Post("/{name}/toggle", s.handleToggleLED)
			r.Post("/{name}/blink", s.handleBlinkLED)
		})
		r.Get("/buttons/{name}", s.handleReadButton)

		// WebSocket event feed
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
