package capture

import (
	"context"
	"fmt"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/schedule"
)

// Strategy is the capability set every capture backend implements.
//
// A strategy instance is owned by exactly one Controller; callers
// outside this package go through the Controller, which serialises
// subprocess-bound operations and applies the error taxonomy.
type Strategy interface {
	// Type returns the variant identifier used in config and events.
	Type() StrategyType

	// Initialize prepares output directories and verifies the device
	// is reachable. Safe to call once before any other operation.
	Initialize(ctx context.Context) error

	// IsAvailable is a non-failing reachability probe.
	IsAvailable(ctx context.Context) bool

	// Capabilities is pure and static per variant.
	Capabilities() Capabilities

	// TakePicture produces one still image, applying override on
	// strategies with CanAdjustSettings. A nil override uses current
	// settings.
	TakePicture(ctx context.Context, override *Settings) (*Result, error)

	// StartVideo begins a recording. Only valid with CanRecordVideo;
	// starting while already recording returns ErrAlreadyRecording.
	StartVideo(ctx context.Context) error

	// StopVideo ends the recording and returns its result. Stopping
	// without a prior StartVideo returns ErrNotRecording.
	StopVideo(ctx context.Context) (*Result, error)

	// LiveView returns the strategy's live-view stream. Only valid
	// with CanLiveView.
	LiveView() (*Stream, error)

	// GetSettings returns the current effective settings.
	GetSettings() Settings

	// UpdateSettings merges partial over the current settings and
	// applies them to the device. Returns the merged settings.
	UpdateSettings(ctx context.Context, partial Settings) (Settings, error)

	// Cleanup releases all subprocess and device handles. Idempotent.
	Cleanup() error
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

// StrategyDeps carries the collaborators a strategy needs.
type StrategyDeps struct {
	Booth     config.BoothConfig
	Capture   config.CaptureConfig
	Scheduler schedule.Scheduler
	Logger    Logger
}

func (d *StrategyDeps) applyDefaults() {
	if d.Scheduler == nil {
		d.Scheduler = schedule.New()
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
}

// NewStrategy constructs the backend for the given type. Adding a
// backend means one new variant plus one arm here.
func NewStrategy(t StrategyType, deps StrategyDeps) (Strategy, error) {
	deps.applyDefaults()

	switch t {
	case StrategySimulated:
		return newSimulated(deps), nil
	case StrategyExternalProcess:
		return newWebcam(deps), nil
	case StrategyTetheredCLI:
		return newDSLR(deps), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy type %q", ErrConfiguration, t)
	}
}
