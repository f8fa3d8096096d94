package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/process"
)

const (
	ffmpegBinary = "ffmpeg"

	// stillCaptureTimeout bounds a one-shot still capture run.
	stillCaptureTimeout = 15 * time.Second

	// thumbnailTimeout bounds the best-effort thumbnail run.
	thumbnailTimeout = 10 * time.Second
)

// webcam drives a V4L2 webcam through one-shot and long-running ffmpeg
// subprocesses.
type webcam struct {
	booth   config.BoothConfig
	capture config.CaptureConfig
	logger  Logger

	// binary is resolved at construction so tests can substitute a
	// stand-in executable.
	binary string

	mu        sync.Mutex
	settings  Settings
	stream    *Stream
	recording *process.Handle
	videoPath string
	videoTime time.Time
}

func newWebcam(deps StrategyDeps) *webcam {
	w := &webcam{
		booth:    deps.Booth,
		capture:  deps.Capture,
		logger:   deps.Logger,
		binary:   ffmpegBinary,
		settings: settingsFromDefaults(deps.Capture.Defaults),
	}
	if w.settings.ImageFormat == "" {
		w.settings.ImageFormat = "jpeg"
	}
	if w.settings.ImageQuality == 0 {
		w.settings.ImageQuality = 90
	}
	w.stream = newStream(w.startLiveView, deps.Capture.FrameTimeout())
	return w
}

func (w *webcam) Type() StrategyType { return StrategyExternalProcess }

func (w *webcam) Capabilities() Capabilities {
	return Capabilities{
		CanCaptureStill:   true,
		CanRecordVideo:    true,
		CanLiveView:       true,
		CanAdjustSettings: true,
		Formats:           []string{"jpeg", "mp4"},
		Resolutions:       []string{"1920x1080", "1280x720", "640x480"},
	}
}

func (w *webcam) Initialize(ctx context.Context) error {
	if err := ensureDirs(w.booth.OutputDir, w.booth.ThumbnailDir); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if _, err := exec.LookPath(w.binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrDeviceUnavailable, w.binary)
	}
	if _, err := os.Stat(w.capture.Device); err != nil {
		return fmt.Errorf("%w: device %s: %v", ErrDeviceUnavailable, w.capture.Device, err)
	}
	return nil
}

func (w *webcam) IsAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath(w.binary); err != nil {
		return false
	}
	_, err := os.Stat(w.capture.Device)
	return err == nil
}

func (w *webcam) TakePicture(ctx context.Context, override *Settings) (*Result, error) {
	settings := w.GetSettings()
	if override != nil {
		settings = settings.Merge(*override)
	}

	now := time.Now()
	name := newFileName("booth", now, "jpg")
	path := filepath.Join(w.booth.OutputDir, name)

	args := w.stillArgs(settings, path)
	if out, err := process.Run(ctx, w.binary, args, stillCaptureTimeout); err != nil {
		return nil, fmt.Errorf("%w: still capture: %v (output: %s)", ErrCaptureFailed, err, tail(out))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: capture produced no output file: %v", ErrCaptureFailed, err)
	}

	result := &Result{
		ID:         uuid.New().String(),
		Path:       path,
		FileName:   name,
		CapturedAt: now,
		Metadata: Metadata{
			SizeB:    info.Size(),
			Format:   "jpeg",
			Settings: settings,
		},
	}

	result.ThumbnailPath = w.makeThumbnail(ctx, path, name)

	return result, nil
}

// makeThumbnail scales the captured still down with a secondary ffmpeg
// run. Best-effort: failure is logged and the capture still succeeds.
func (w *webcam) makeThumbnail(ctx context.Context, srcPath, name string) string {
	if w.booth.ThumbnailDir == "" {
		return ""
	}
	thumbPath := filepath.Join(w.booth.ThumbnailDir, name)
	args := []string{
		"-y",
		"-i", srcPath,
		"-vf", "scale=320:-1",
		thumbPath,
	}
	if out, err := process.Run(ctx, w.binary, args, thumbnailTimeout); err != nil {
		w.logger.Warn("thumbnail generation failed",
			"source", srcPath,
			"error", err,
			"output", tail(out),
		)
		return ""
	}
	return thumbPath
}

func (w *webcam) StartVideo(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.recording != nil {
		return ErrAlreadyRecording
	}

	now := time.Now()
	name := newFileName("booth", now, "mp4")
	path := filepath.Join(w.booth.OutputDir, name)

	handle, err := process.Start(ctx, process.Config{
		Name:            "webcam-recording",
		Binary:          w.binary,
		Args:            w.videoArgs(path),
		GracefulTimeout: w.capture.VideoStopGrace(),
	}, w.logger)
	if err != nil {
		return fmt.Errorf("%w: starting recording: %v", ErrCaptureFailed, err)
	}

	w.recording = handle
	w.videoPath = path
	w.videoTime = now
	return nil
}

func (w *webcam) StopVideo(ctx context.Context) (*Result, error) {
	w.mu.Lock()
	handle := w.recording
	path := w.videoPath
	started := w.videoTime
	w.recording = nil
	w.mu.Unlock()

	if handle == nil {
		return nil, ErrNotRecording
	}

	// Stop escalates SIGTERM to SIGKILL after the grace period, so the
	// encoder gets a chance to finalise the container.
	stopErr := handle.Stop()
	if stopErr != nil && !errors.Is(stopErr, process.ErrKilled) {
		// The stop itself failed, so the encoder may still be running.
		// Put the handle back so a retry does not report ErrNotRecording.
		w.mu.Lock()
		if w.recording == nil {
			w.recording = handle
			w.videoPath = path
			w.videoTime = started
		}
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: stopping recording: %v", ErrCaptureFailed, stopErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: recording produced no output file: %v", ErrCaptureFailed, err)
	}

	now := time.Now()
	result := &Result{
		ID:         uuid.New().String(),
		Path:       path,
		FileName:   filepath.Base(path),
		CapturedAt: now,
		Metadata: Metadata{
			SizeB:  info.Size(),
			Format: "mp4",
			Extra: map[string]string{
				"duration": now.Sub(started).String(),
			},
		},
	}

	if stopErr != nil {
		// Encoder ignored SIGTERM and was killed: the file exists but
		// the container was never finalised and may be truncated.
		return result, fmt.Errorf("%w: recording stop exceeded %s grace, file may be truncated",
			ErrTimeout, w.capture.VideoStopGrace())
	}
	return result, nil
}

func (w *webcam) LiveView() (*Stream, error) {
	return w.stream, nil
}

// startLiveView launches a continuous ffmpeg MJPEG pipe with stdout
// wired to the frame parser. Live view is killed outright on stop; the
// preview has no state worth flushing.
func (w *webcam) startLiveView(stream *Stream) (func(), error) {
	parser := NewFrameParser(stream.Deliver)

	handle, err := process.Start(context.Background(), process.Config{
		Name:   "webcam-liveview",
		Binary: w.binary,
		Args:   w.liveViewArgs(),
		Stdout: parser,
	}, w.logger)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := handle.Kill(); err != nil {
			w.logger.Warn("live-view kill failed", "error", err)
		}
	}, nil
}

func (w *webcam) GetSettings() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

func (w *webcam) UpdateSettings(ctx context.Context, partial Settings) (Settings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = w.settings.Merge(partial)
	return w.settings, nil
}

func (w *webcam) Cleanup() error {
	w.stream.Stop()

	w.mu.Lock()
	handle := w.recording
	w.recording = nil
	w.mu.Unlock()

	if handle != nil {
		// A SIGKILL escalation still leaves the encoder dead, which is
		// all cleanup needs.
		if err := handle.Stop(); err != nil && !errors.Is(err, process.ErrKilled) {
			return fmt.Errorf("stopping recording during cleanup: %w", err)
		}
	}
	return nil
}

// stillArgs builds the one-shot capture invocation.
func (w *webcam) stillArgs(settings Settings, outPath string) []string {
	args := []string{
		"-y",
		"-f", "v4l2",
		"-i", w.capture.Device,
		"-frames:v", "1",
	}
	if q := qualityScale(settings.ImageQuality); q != "" {
		args = append(args, "-q:v", q)
	}
	return append(args, outPath)
}

// videoArgs builds the long-running recording invocation.
func (w *webcam) videoArgs(outPath string) []string {
	return []string{
		"-y",
		"-f", "v4l2",
		"-i", w.capture.Device,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		outPath,
	}
}

// liveViewArgs builds the continuous MJPEG-to-stdout invocation.
func (w *webcam) liveViewArgs() []string {
	lv := w.capture.LiveView
	return []string{
		"-f", "v4l2",
		"-framerate", strconv.Itoa(lv.FPS),
		"-video_size", fmt.Sprintf("%dx%d", lv.Width, lv.Height),
		"-i", w.capture.Device,
		"-f", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	}
}

// qualityScale maps a 1-100 quality to ffmpeg's inverted 2-31 q:v
// scale. Zero means "tool default".
func qualityScale(quality int) string {
	if quality <= 0 || quality > 100 {
		return ""
	}
	q := 31 - (quality*29)/100
	if q < 2 {
		q = 2
	}
	return strconv.Itoa(q)
}

// tail truncates tool output for error messages.
func tail(out []byte) string {
	const max = 256
	if len(out) <= max {
		return string(out)
	}
	return "..." + string(out[len(out)-max:])
}
