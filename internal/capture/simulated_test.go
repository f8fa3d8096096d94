package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/schedule"
)

func newTestSimulated(t *testing.T, sched schedule.Scheduler) *simulated {
	t.Helper()

	deps := StrategyDeps{
		Booth: config.BoothConfig{
			OutputDir:    t.TempDir(),
			ThumbnailDir: t.TempDir(),
		},
		Capture: config.CaptureConfig{
			LiveView: config.LiveViewConfig{Width: 640, Height: 480, FPS: 10},
		},
		Scheduler: sched,
	}
	deps.applyDefaults()

	s := newSimulated(deps)
	s.latency = 0
	return s
}

func TestSimulated_TakePictureMetadata(t *testing.T) {
	s := newTestSimulated(t, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	result, err := s.TakePicture(context.Background(), nil)
	if err != nil {
		t.Fatalf("TakePicture: %v", err)
	}

	if result.Metadata.Width != 1920 {
		t.Errorf("width = %d, want 1920", result.Metadata.Width)
	}
	if result.Metadata.Height != 1080 {
		t.Errorf("height = %d, want 1080", result.Metadata.Height)
	}
	if result.Metadata.Format != "jpeg" {
		t.Errorf("format = %q, want %q", result.Metadata.Format, "jpeg")
	}
	if result.ID == "" {
		t.Error("expected non-empty capture ID")
	}
	if result.ThumbnailPath == "" {
		t.Error("expected thumbnail path")
	}
}

func TestSimulated_UniqueFileNames(t *testing.T) {
	s := newTestSimulated(t, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		result, err := s.TakePicture(context.Background(), nil)
		if err != nil {
			t.Fatalf("TakePicture %d: %v", i, err)
		}
		if seen[result.FileName] {
			t.Fatalf("duplicate file name %q", result.FileName)
		}
		seen[result.FileName] = true
	}
}

func TestSimulated_SettingsMerge(t *testing.T) {
	s := newTestSimulated(t, nil)

	merged, err := s.UpdateSettings(context.Background(), Settings{ISO: "400"})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if merged.ISO != "400" {
		t.Errorf("ISO = %q, want %q", merged.ISO, "400")
	}

	merged, err = s.UpdateSettings(context.Background(), Settings{Aperture: "f/2.8"})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if merged.ISO != "400" {
		t.Errorf("ISO after partial update = %q, want %q preserved", merged.ISO, "400")
	}
	if merged.Aperture != "f/2.8" {
		t.Errorf("Aperture = %q, want %q", merged.Aperture, "f/2.8")
	}
}

func TestSimulated_VideoLifecycle(t *testing.T) {
	s := newTestSimulated(t, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := s.StopVideo(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("StopVideo before start = %v, want ErrNotRecording", err)
	}

	if err := s.StartVideo(context.Background()); err != nil {
		t.Fatalf("StartVideo: %v", err)
	}
	if err := s.StartVideo(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second StartVideo = %v, want ErrAlreadyRecording", err)
	}

	result, err := s.StopVideo(context.Background())
	if err != nil {
		t.Fatalf("StopVideo: %v", err)
	}
	if result.Metadata.Format != "mp4" {
		t.Errorf("video format = %q, want mp4", result.Metadata.Format)
	}
}

func TestSimulated_LiveViewFrames(t *testing.T) {
	fake := schedule.NewFake()
	s := newTestSimulated(t, fake)

	stream, err := s.LiveView()
	if err != nil {
		t.Fatalf("LiveView: %v", err)
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	count := 0
	stream.OnFrame(func([]byte) { count++ })

	// 10 fps for one virtual second.
	fake.Advance(time.Second)

	if count != 10 {
		t.Errorf("frames delivered = %d, want 10", count)
	}

	stream.Stop()
	fake.Advance(time.Second)
	if count != 10 {
		t.Errorf("frames after Stop = %d, want 10", count)
	}
}

func TestSimulated_CleanupIdempotent(t *testing.T) {
	s := newTestSimulated(t, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestSimulated_Capabilities(t *testing.T) {
	s := newTestSimulated(t, nil)
	caps := s.Capabilities()

	if !caps.CanCaptureStill || !caps.CanRecordVideo || !caps.CanLiveView || !caps.CanAdjustSettings {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
}
