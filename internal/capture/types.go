package capture

import (
	"time"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
)

// StrategyType identifies a capture backend variant.
type StrategyType string

const (
	// StrategySimulated generates synthetic frames with no hardware.
	StrategySimulated StrategyType = config.StrategySimulated

	// StrategyExternalProcess drives a webcam through ffmpeg.
	StrategyExternalProcess StrategyType = config.StrategyExternalProcess

	// StrategyTetheredCLI drives a DSLR through the gphoto2 CLI.
	StrategyTetheredCLI StrategyType = config.StrategyTetheredCLI
)

// ConnectionState tracks the controller's device lifecycle.
type ConnectionState string

const (
	StateUninitialized ConnectionState = "uninitialized"
	StateInitializing  ConnectionState = "initializing"
	StateReady         ConnectionState = "ready"
	StateReconnecting  ConnectionState = "reconnecting"
	StateFailed        ConnectionState = "failed"
)

// Capabilities describes what a strategy variant can do. Immutable per
// strategy instance.
type Capabilities struct {
	CanCaptureStill   bool     `json:"can_capture_still"`
	CanRecordVideo    bool     `json:"can_record_video"`
	CanLiveView       bool     `json:"can_live_view"`
	CanAdjustSettings bool     `json:"can_adjust_settings"`
	Formats           []string `json:"formats"`
	Resolutions       []string `json:"resolutions"`
}

// Settings holds capture parameters. All fields are optional: the
// zero value means "leave the strategy default in place". Merge
// produces the effective settings for a partial update.
type Settings struct {
	ISO          string `json:"iso,omitempty" yaml:"iso"`
	Aperture     string `json:"aperture,omitempty" yaml:"aperture"`
	ShutterSpeed string `json:"shutter_speed,omitempty" yaml:"shutter_speed"`
	WhiteBalance string `json:"white_balance,omitempty" yaml:"white_balance"`
	FocusMode    string `json:"focus_mode,omitempty" yaml:"focus_mode"`
	ImageFormat  string `json:"image_format,omitempty" yaml:"image_format"`
	ImageQuality int    `json:"image_quality,omitempty" yaml:"image_quality"`
}

// Merge returns a copy of s with every non-zero field of partial
// applied on top.
func (s Settings) Merge(partial Settings) Settings {
	merged := s
	if partial.ISO != "" {
		merged.ISO = partial.ISO
	}
	if partial.Aperture != "" {
		merged.Aperture = partial.Aperture
	}
	if partial.ShutterSpeed != "" {
		merged.ShutterSpeed = partial.ShutterSpeed
	}
	if partial.WhiteBalance != "" {
		merged.WhiteBalance = partial.WhiteBalance
	}
	if partial.FocusMode != "" {
		merged.FocusMode = partial.FocusMode
	}
	if partial.ImageFormat != "" {
		merged.ImageFormat = partial.ImageFormat
	}
	if partial.ImageQuality != 0 {
		merged.ImageQuality = partial.ImageQuality
	}
	return merged
}

// settingsFromDefaults converts configured defaults into Settings.
func settingsFromDefaults(d config.CaptureDefaultsConfig) Settings {
	return Settings{
		ISO:          d.ISO,
		Aperture:     d.Aperture,
		ShutterSpeed: d.ShutterSpeed,
		WhiteBalance: d.WhiteBalance,
		FocusMode:    d.FocusMode,
		ImageFormat:  d.ImageFormat,
		ImageQuality: d.ImageQuality,
	}
}

// Metadata describes a stored capture file.
type Metadata struct {
	Width    int               `json:"width,omitempty"`
	Height   int               `json:"height,omitempty"`
	SizeB    int64             `json:"size_bytes,omitempty"`
	Format   string            `json:"format,omitempty"`
	Settings Settings          `json:"settings"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Result describes one completed still or video capture.
type Result struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	FileName      string    `json:"file_name"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
	Metadata      Metadata  `json:"metadata"`
}

// Options modifies a single Capture call.
type Options struct {
	// Countdown, when positive, emits one countdown tick event per
	// second before the shutter fires.
	Countdown int `json:"countdown,omitempty"`

	// Sound and Flash are side-effect hints forwarded on the capture
	// started event; the controller performs neither itself.
	Sound bool `json:"sound,omitempty"`
	Flash bool `json:"flash,omitempty"`

	// Settings overrides applied for this capture only, on strategies
	// with CanAdjustSettings.
	Settings *Settings `json:"settings,omitempty"`
}
