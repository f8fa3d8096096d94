package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/schedule"
)

// captureSeq makes generated file names unique within one process even
// when two captures share a timestamp.
var captureSeq atomic.Uint64

// newFileName derives a process-unique file name from the capture time.
func newFileName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%04d.%s", prefix, t.Format("20060102_150405"), captureSeq.Add(1), ext)
}

const (
	simulatedWidth  = 1920
	simulatedHeight = 1080

	// simulatedLatency mimics the shutter lag of a real device.
	simulatedLatency = 150 * time.Millisecond
)

// simulated generates synthetic captures with no hardware. It is the
// default development backend and the fallback when no physical device
// is detected.
type simulated struct {
	booth   config.BoothConfig
	capture config.CaptureConfig
	sched   schedule.Scheduler
	logger  Logger
	latency time.Duration

	mu          sync.Mutex
	settings    Settings
	stream      *Stream
	recording   bool
	videoStart  time.Time
	initialised bool
}

func newSimulated(deps StrategyDeps) *simulated {
	s := &simulated{
		booth:    deps.Booth,
		capture:  deps.Capture,
		sched:    deps.Scheduler,
		logger:   deps.Logger,
		latency:  simulatedLatency,
		settings: settingsFromDefaults(deps.Capture.Defaults),
	}
	if s.settings.ImageFormat == "" {
		s.settings.ImageFormat = "jpeg"
	}
	s.stream = newStream(s.startFrames, deps.Capture.FrameTimeout())
	return s
}

func (s *simulated) Type() StrategyType { return StrategySimulated }

func (s *simulated) Capabilities() Capabilities {
	return Capabilities{
		CanCaptureStill:   true,
		CanRecordVideo:    true,
		CanLiveView:       true,
		CanAdjustSettings: true,
		Formats:           []string{"jpeg"},
		Resolutions:       []string{"1920x1080"},
	}
}

func (s *simulated) Initialize(ctx context.Context) error {
	if err := ensureDirs(s.booth.OutputDir, s.booth.ThumbnailDir); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.mu.Lock()
	s.initialised = true
	s.mu.Unlock()
	return nil
}

func (s *simulated) IsAvailable(ctx context.Context) bool {
	return true
}

func (s *simulated) TakePicture(ctx context.Context, override *Settings) (*Result, error) {
	settings := s.GetSettings()
	if override != nil {
		settings = settings.Merge(*override)
	}

	// Mimic shutter lag so callers exercise the same timing paths as
	// with a real device.
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	now := time.Now()
	name := newFileName("booth", now, "jpg")
	path := filepath.Join(s.booth.OutputDir, name)

	data := syntheticJPEG(simulatedWidth, simulatedHeight, now.UnixNano())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing simulated capture: %v", ErrCaptureFailed, err)
	}

	thumbPath := filepath.Join(s.booth.ThumbnailDir, name)
	if err := os.WriteFile(thumbPath, syntheticJPEG(320, 180, now.UnixNano()), 0o644); err != nil {
		s.logger.Warn("simulated thumbnail write failed", "error", err)
		thumbPath = ""
	}

	return &Result{
		ID:            uuid.New().String(),
		Path:          path,
		FileName:      name,
		ThumbnailPath: thumbPath,
		CapturedAt:    now,
		Metadata: Metadata{
			Width:    simulatedWidth,
			Height:   simulatedHeight,
			SizeB:    int64(len(data)),
			Format:   "jpeg",
			Settings: settings,
		},
	}, nil
}

func (s *simulated) StartVideo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	s.recording = true
	s.videoStart = time.Now()
	return nil
}

func (s *simulated) StopVideo(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.recording = false
	start := s.videoStart
	s.mu.Unlock()

	now := time.Now()
	name := newFileName("booth", now, "mp4")
	path := filepath.Join(s.booth.OutputDir, name)

	data := syntheticJPEG(simulatedWidth, simulatedHeight, now.UnixNano())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing simulated video: %v", ErrCaptureFailed, err)
	}

	return &Result{
		ID:         uuid.New().String(),
		Path:       path,
		FileName:   name,
		CapturedAt: now,
		Metadata: Metadata{
			Width:  simulatedWidth,
			Height: simulatedHeight,
			SizeB:  int64(len(data)),
			Format: "mp4",
			Extra: map[string]string{
				"duration": now.Sub(start).String(),
			},
		},
	}, nil
}

func (s *simulated) LiveView() (*Stream, error) {
	return s.stream, nil
}

// startFrames drives the stream with synthetic frames at the
// configured live-view rate.
func (s *simulated) startFrames(stream *Stream) (func(), error) {
	fps := s.capture.LiveView.FPS
	if fps <= 0 {
		fps = 15
	}
	interval := time.Second / time.Duration(fps)

	var seq atomic.Int64
	handle := s.sched.Repeat(interval, func() {
		stream.Deliver(syntheticJPEG(s.capture.LiveView.Width, s.capture.LiveView.Height, seq.Add(1)))
	})

	return handle.Cancel, nil
}

func (s *simulated) GetSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *simulated) UpdateSettings(ctx context.Context, partial Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.settings.Merge(partial)
	return s.settings, nil
}

func (s *simulated) Cleanup() error {
	s.stream.Stop()
	s.mu.Lock()
	s.recording = false
	s.initialised = false
	s.mu.Unlock()
	return nil
}

// syntheticJPEG builds a deterministic pseudo-random byte pattern
// wrapped in JPEG SOI/EOI markers. The payload avoids 0xFF so the
// frame parser sees exactly one frame per buffer.
func syntheticJPEG(width, height int, seed int64) []byte {
	size := 4096
	buf := make([]byte, 0, size+4)
	buf = append(buf, soiMarker...)

	state := uint64(seed)*2862933555777941757 + 3037000493
	for i := 0; i < size; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		buf = append(buf, byte(state>>33)&0x7F)
	}

	buf = append(buf, eoiMarker...)
	return buf
}

// ensureDirs creates the output directories if missing.
func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
