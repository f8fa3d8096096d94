package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/process"
)

const (
	gphoto2Binary = "gphoto2"

	// detectTimeout bounds the device enumeration run.
	detectTimeout = 10 * time.Second

	// dslrCaptureTimeout bounds capture-and-download. Tethered
	// transfers of large raw files are slow.
	dslrCaptureTimeout = 30 * time.Second

	// setConfigTimeout bounds a single settings key application.
	setConfigTimeout = 10 * time.Second
)

// detectedCamera is one row of gphoto2 --auto-detect output.
type detectedCamera struct {
	Model string
	Port  string
}

// dslr drives a tethered camera through the gphoto2 CLI. Video
// recording is not supported on this path; live view uses the
// camera's movie mode streamed to stdout.
type dslr struct {
	booth   config.BoothConfig
	capture config.CaptureConfig
	logger  Logger

	binary string

	mu       sync.Mutex
	settings Settings
	stream   *Stream
	camera   *detectedCamera
}

func newDSLR(deps StrategyDeps) *dslr {
	d := &dslr{
		booth:    deps.Booth,
		capture:  deps.Capture,
		logger:   deps.Logger,
		binary:   gphoto2Binary,
		settings: settingsFromDefaults(deps.Capture.Defaults),
	}
	if d.settings.ImageFormat == "" {
		d.settings.ImageFormat = "jpeg"
	}
	d.stream = newStream(d.startLiveView, deps.Capture.FrameTimeout())
	return d
}

func (d *dslr) Type() StrategyType { return StrategyTetheredCLI }

func (d *dslr) Capabilities() Capabilities {
	return Capabilities{
		CanCaptureStill:   true,
		CanRecordVideo:    false,
		CanLiveView:       true,
		CanAdjustSettings: true,
		Formats:           []string{"jpeg", "raw"},
	}
}

func (d *dslr) Initialize(ctx context.Context) error {
	if err := ensureDirs(d.booth.OutputDir, d.booth.ThumbnailDir); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrDeviceUnavailable, d.binary)
	}

	camera, err := d.detect(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.camera = camera
	d.mu.Unlock()

	d.logger.Info("tethered camera detected",
		"model", camera.Model,
		"port", camera.Port,
	)
	return nil
}

// detect enumerates attached cameras and returns the first match for
// the configured device, or the first camera when no device is
// configured.
func (d *dslr) detect(ctx context.Context) (*detectedCamera, error) {
	out, err := process.Run(ctx, d.binary, []string{"--auto-detect"}, detectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: auto-detect: %v", ErrDeviceUnavailable, err)
	}

	cameras := parseAutoDetect(string(out))
	if len(cameras) == 0 {
		return nil, fmt.Errorf("%w: no tethered camera detected", ErrDeviceUnavailable)
	}

	if d.capture.Device != "" {
		for i := range cameras {
			if cameras[i].Port == d.capture.Device || strings.Contains(cameras[i].Model, d.capture.Device) {
				return &cameras[i], nil
			}
		}
		return nil, fmt.Errorf("%w: camera %q not among detected devices", ErrDeviceUnavailable, d.capture.Device)
	}

	return &cameras[0], nil
}

// parseAutoDetect extracts model and port pairs from gphoto2
// --auto-detect output. The output is a two-line header followed by
// rows with the port in the last whitespace-separated column:
//
//	Model                          Port
//	----------------------------------------------------------
//	Canon EOS 2000D                usb:001,004
func parseAutoDetect(output string) []detectedCamera {
	var cameras []detectedCamera

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i < 2 {
			continue // header and separator
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		idx := strings.LastIndexFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t'
		})
		if idx < 0 {
			continue
		}

		port := strings.TrimSpace(line[idx+1:])
		model := strings.TrimSpace(line[:idx])
		if model == "" || !strings.Contains(port, ":") {
			continue
		}

		cameras = append(cameras, detectedCamera{Model: model, Port: port})
	}

	return cameras
}

func (d *dslr) IsAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath(d.binary); err != nil {
		return false
	}
	camera, err := d.detect(ctx)
	return err == nil && camera != nil
}

func (d *dslr) TakePicture(ctx context.Context, override *Settings) (*Result, error) {
	d.mu.Lock()
	camera := d.camera
	d.mu.Unlock()
	if camera == nil {
		return nil, fmt.Errorf("%w: not initialised", ErrDeviceUnavailable)
	}

	settings := d.GetSettings()
	if override != nil {
		settings = settings.Merge(*override)
		d.applySettings(ctx, camera, *override)
	}

	now := time.Now()
	name := newFileName("booth", now, "jpg")
	path := filepath.Join(d.booth.OutputDir, name)

	args := []string{
		"--port", camera.Port,
		"--capture-image-and-download",
		"--filename", path,
		"--force-overwrite",
	}
	if out, err := process.Run(ctx, d.binary, args, dslrCaptureTimeout); err != nil {
		return nil, fmt.Errorf("%w: capture-and-download: %v (output: %s)", ErrCaptureFailed, err, tail(out))
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
			Extra: map[string]string{
				"model": camera.Model,
				"port":  camera.Port,
			},
		},
	}

	// Thumbnail is a best-effort secondary call; never fails the capture.
	result.ThumbnailPath = d.makeThumbnail(ctx, path, name)

	return result, nil
}

// makeThumbnail scales the downloaded image with ffmpeg when present.
func (d *dslr) makeThumbnail(ctx context.Context, srcPath, name string) string {
	if d.booth.ThumbnailDir == "" {
		return ""
	}
	ffmpeg, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return ""
	}

	thumbPath := filepath.Join(d.booth.ThumbnailDir, name)
	args := []string{"-y", "-i", srcPath, "-vf", "scale=320:-1", thumbPath}
	if out, err := process.Run(ctx, ffmpeg, args, thumbnailTimeout); err != nil {
		d.logger.Warn("thumbnail generation failed",
			"source", srcPath,
			"error", err,
			"output", tail(out),
		)
		return ""
	}
	return thumbPath
}

func (d *dslr) StartVideo(ctx context.Context) error {
	return fmt.Errorf("%w: tethered DSLR cannot record video", ErrUnsupportedOperation)
}

func (d *dslr) StopVideo(ctx context.Context) (*Result, error) {
	return nil, fmt.Errorf("%w: tethered DSLR cannot record video", ErrUnsupportedOperation)
}

func (d *dslr) LiveView() (*Stream, error) {
	return d.stream, nil
}

// startLiveView streams the camera's movie-mode MJPEG output through
// the frame parser.
func (d *dslr) startLiveView(stream *Stream) (func(), error) {
	d.mu.Lock()
	camera := d.camera
	d.mu.Unlock()
	if camera == nil {
		return nil, fmt.Errorf("%w: not initialised", ErrDeviceUnavailable)
	}

	parser := NewFrameParser(stream.Deliver)

	handle, err := process.Start(context.Background(), process.Config{
		Name:   "dslr-liveview",
		Binary: d.binary,
		Args:   []string{"--port", camera.Port, "--capture-movie", "--stdout"},
		Stdout: parser,
	}, d.logger)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := handle.Kill(); err != nil {
			d.logger.Warn("live-view kill failed", "error", err)
		}
	}, nil
}

func (d *dslr) GetSettings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

func (d *dslr) UpdateSettings(ctx context.Context, partial Settings) (Settings, error) {
	d.mu.Lock()
	camera := d.camera
	d.mu.Unlock()
	if camera == nil {
		return Settings{}, fmt.Errorf("%w: not initialised", ErrDeviceUnavailable)
	}

	d.applySettings(ctx, camera, partial)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = d.settings.Merge(partial)
	return d.settings, nil
}

// applySettings translates each set field into a vendor key and
// applies them one at a time. Individual failures are logged and
// skipped; a camera rejecting one key must not abort the rest.
func (d *dslr) applySettings(ctx context.Context, camera *detectedCamera, partial Settings) {
	for _, kv := range configPairs(partial) {
		args := []string{
			"--port", camera.Port,
			"--set-config", kv,
		}
		if out, err := process.Run(ctx, d.binary, args, setConfigTimeout); err != nil {
			d.logger.Warn("set-config rejected",
				"config", kv,
				"error", err,
				"output", tail(out),
			)
		}
	}
}

// configPairs maps domain settings fields onto gphoto2 configuration
// keys, skipping unset fields.
func configPairs(s Settings) []string {
	var pairs []string
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, key+"="+value)
		}
	}
	add("iso", s.ISO)
	add("aperture", s.Aperture)
	add("shutterspeed", s.ShutterSpeed)
	add("whitebalance", s.WhiteBalance)
	add("focusmode", s.FocusMode)
	add("imageformat", s.ImageFormat)
	if s.ImageQuality > 0 {
		add("imagequality", strconv.Itoa(s.ImageQuality))
	}
	return pairs
}

func (d *dslr) Cleanup() error {
	d.stream.Stop()
	d.mu.Lock()
	d.camera = nil
	d.mu.Unlock()
	return nil
}
