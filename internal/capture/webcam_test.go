package capture

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
)

func newTestWebcam(t *testing.T) *webcam {
	t.Helper()
	deps := StrategyDeps{
		Booth: config.BoothConfig{
			OutputDir:    t.TempDir(),
			ThumbnailDir: t.TempDir(),
		},
		Capture: config.CaptureConfig{
			Device:   "/dev/video0",
			LiveView: config.LiveViewConfig{Width: 1280, Height: 720, FPS: 15},
		},
	}
	deps.applyDefaults()
	return newWebcam(deps)
}

func TestWebcam_StillArgs(t *testing.T) {
	w := newTestWebcam(t)

	args := w.stillArgs(Settings{ImageQuality: 90}, "/tmp/out.jpg")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f v4l2",
		"-i /dev/video0",
		"-frames:v 1",
		"/tmp/out.jpg",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("stillArgs missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "/tmp/out.jpg" {
		t.Errorf("output path must be the final argument, got %v", args)
	}
}

func TestWebcam_VideoArgs(t *testing.T) {
	w := newTestWebcam(t)

	joined := strings.Join(w.videoArgs("/tmp/out.mp4"), " ")
	for _, want := range []string{"-f v4l2", "-i /dev/video0", "libx264", "/tmp/out.mp4"} {
		if !strings.Contains(joined, want) {
			t.Errorf("videoArgs missing %q: %s", want, joined)
		}
	}
}

func TestWebcam_LiveViewArgs(t *testing.T) {
	w := newTestWebcam(t)

	joined := strings.Join(w.liveViewArgs(), " ")
	for _, want := range []string{
		"-framerate 15",
		"-video_size 1280x720",
		"-f mjpeg",
		"pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("liveViewArgs missing %q: %s", want, joined)
		}
	}
}

func TestQualityScale(t *testing.T) {
	tests := []struct {
		name    string
		quality int
		want    string
	}{
		{name: "zero means default", quality: 0, want: ""},
		{name: "out of range", quality: 150, want: ""},
		{name: "max quality", quality: 100, want: "2"},
		{name: "min quality", quality: 1, want: "31"},
		{name: "mid quality", quality: 50, want: "17"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qualityScale(tt.quality); got != tt.want {
				t.Errorf("qualityScale(%d) = %q, want %q", tt.quality, got, tt.want)
			}
		})
	}
}

func TestWebcam_InitializeWithoutDevice(t *testing.T) {
	w := newTestWebcam(t)
	w.capture.Device = "/nonexistent/video99"

	err := w.Initialize(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Initialize = %v, want ErrDeviceUnavailable", err)
	}
}

// stubEncoder writes an executable stand-in for ffmpeg that ignores
// SIGTERM, writes its output file (the final argument) and then hangs.
func stubEncoder(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}

	script := `#!/bin/sh
trap "" TERM
for a in "$@"; do out="$a"; done
printf 'mp4-bytes' > "$out"
sleep 30
`
	path := filepath.Join(t.TempDir(), "encoder.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing stub encoder: %v", err)
	}
	return path
}

func TestWebcam_StopVideoEscalationReturnsTimeout(t *testing.T) {
	w := newTestWebcam(t)
	w.binary = stubEncoder(t)
	w.capture.Video.StopGraceMS = 200

	if err := w.StartVideo(context.Background()); err != nil {
		t.Fatalf("StartVideo: %v", err)
	}

	// Let the stub install its trap and write the output file.
	time.Sleep(150 * time.Millisecond)

	result, err := w.StopVideo(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("StopVideo = %v, want ErrTimeout", err)
	}
	if result == nil {
		t.Fatal("expected a result alongside the timeout")
	}
	if result.Metadata.SizeB == 0 {
		t.Error("expected the possibly-truncated file to be stat-ed")
	}

	// The encoder is dead either way, so a retry has nothing to stop.
	if _, err := w.StopVideo(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("second StopVideo = %v, want ErrNotRecording", err)
	}
}

func TestWebcam_StopVideoWithoutStart(t *testing.T) {
	w := newTestWebcam(t)

	if _, err := w.StopVideo(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("StopVideo = %v, want ErrNotRecording", err)
	}
}

func TestWebcam_Capabilities(t *testing.T) {
	w := newTestWebcam(t)
	caps := w.Capabilities()

	if !caps.CanCaptureStill || !caps.CanRecordVideo || !caps.CanLiveView {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
}
