// Package api provides the HTTP REST API and WebSocket server for the
// booth.
//
// It exposes capture operations, live-view streaming, settings, GPIO
// control, and the capture log to kiosk front-ends and operator tools.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openbooth/booth-core/internal/buttons"
	"github.com/openbooth/booth-core/internal/capture"
	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/gpio"
	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Capture    *capture.Controller
	Pins       *gpio.Controller
	Dispatcher *buttons.Dispatcher
	Bus        *events.Bus
	Repo       *capture.Repository
	Version    string
}

// Server is the HTTP API server for the booth.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	capture    *capture.Controller
	pins       *gpio.Controller
	dispatcher *buttons.Dispatcher
	bus        *events.Bus
	repo       *capture.Repository
	version    string
	server     *http.Server
	hub        *Hub
	busOff     func()
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Capture == nil {
		return nil, fmt.Errorf("capture controller is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	// Pins, Dispatcher, and Repo are optional; their endpoints return
	// 503 when the component is absent.

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		capture:    deps.Capture,
		pins:       deps.Pins,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		repo:       deps.Repo,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to the
// event bus for real-time WebSocket broadcast, and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Every bus event is broadcast to WebSocket clients subscribed to
	// its type as a channel.
	s.busOff = s.bus.SubscribeAll(func(e events.Event) {
		s.hub.Broadcast(string(e.Type), e.Payload)
	})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.busOff != nil {
		s.busOff()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
