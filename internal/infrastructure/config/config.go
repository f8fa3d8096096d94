package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Booth Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Booth     BoothConfig     `yaml:"booth"`
	Capture   CaptureConfig   `yaml:"capture"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	LEDs      []LEDConfig     `yaml:"leds"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BoothConfig contains station-wide identification and output locations.
type BoothConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	OutputDir    string `yaml:"output_dir"`
	ThumbnailDir string `yaml:"thumbnail_dir"`
}

// CaptureConfig contains capture backend settings.
type CaptureConfig struct {
	// Strategy selects the capture backend: "simulated", "external-process",
	// or "tethered-cli".
	Strategy string `yaml:"strategy"`

	// Device is the device identifier for the selected backend
	// (e.g. "/dev/video0" for the webcam backend, a gphoto2 port for DSLR).
	// Empty means auto-detect.
	Device string `yaml:"device"`

	Reconnect ReconnectConfig       `yaml:"reconnect"`
	Video     VideoConfig           `yaml:"video"`
	LiveView  LiveViewConfig        `yaml:"liveview"`
	Defaults  CaptureDefaultsConfig `yaml:"defaults"`
}

// ReconnectConfig contains the bounded retry policy applied after a failed
// device initialisation.
type ReconnectConfig struct {
	// Attempts is the number of timed retries before giving up. 0 disables
	// automatic reconnection.
	Attempts int `yaml:"attempts"`

	// DelayMS is the interval between retry attempts in milliseconds.
	DelayMS int `yaml:"delay_ms"`
}

// VideoConfig contains video recording settings.
type VideoConfig struct {
	// StopGraceMS is how long to wait for the recording subprocess to exit
	// after a graceful stop signal before force-killing it (milliseconds).
	StopGraceMS int `yaml:"stop_grace_ms"`
}

// LiveViewConfig contains live-view preview settings.
type LiveViewConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	// FrameTimeoutMS is the maximum time a frame pull waits before failing
	// with a timeout (milliseconds).
	FrameTimeoutMS int `yaml:"frame_timeout_ms"`
}

// CaptureDefaultsConfig contains default capture settings applied at strategy
// construction. All fields are optional; empty values leave the strategy's
// own defaults in place.
type CaptureDefaultsConfig struct {
	ISO          string `yaml:"iso"`
	Aperture     string `yaml:"aperture"`
	ShutterSpeed string `yaml:"shutter_speed"`
	WhiteBalance string `yaml:"white_balance"`
	FocusMode    string `yaml:"focus_mode"`
	ImageFormat  string `yaml:"image_format"`
	ImageQuality int    `yaml:"image_quality"`
}

// GPIOConfig contains pin-controller backend settings.
type GPIOConfig struct {
	// Backend selects the pin backend: "simulated" or "rpio".
	// Typically "rpio" on a Raspberry Pi and "simulated" everywhere else.
	Backend string `yaml:"backend"`

	// PollIntervalMS is the input sampling interval for backends without
	// hardware edge detection (milliseconds).
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

// ButtonsConfig contains physical button settings.
type ButtonsConfig struct {
	// LongPressMS is the minimum hold duration distinguishing a long press
	// from a short press (milliseconds).
	LongPressMS int `yaml:"long_press_ms"`

	Inputs []ButtonConfig `yaml:"inputs"`
}

// ButtonConfig describes one physical button wired to an input pin.
type ButtonConfig struct {
	Name       string `yaml:"name"`
	Pin        int    `yaml:"pin"`
	DebounceMS int    `yaml:"debounce_ms"`
	Pull       string `yaml:"pull"` // "up", "down", or "none"
}

// LEDConfig describes one indicator LED wired to an output pin.
type LEDConfig struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	DefaultOn bool   `yaml:"default_on"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Recognised capture strategy names.
const (
	StrategySimulated       = "simulated"
	StrategyExternalProcess = "external-process"
	StrategyTetheredCLI     = "tethered-cli"
)

// Recognised GPIO backend names.
const (
	GPIOBackendSimulated = "simulated"
	GPIOBackendRPIO      = "rpio"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BOOTH_SECTION_KEY
// For example: BOOTH_DATABASE_PATH, BOOTH_CAPTURE_STRATEGY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The defaults describe a development setup: simulated capture backend,
// simulated GPIO, no MQTT, no InfluxDB.
func Default() *Config {
	return &Config{
		Booth: BoothConfig{
			ID:           "booth-001",
			Name:         "Booth Core",
			OutputDir:    "./data/photos",
			ThumbnailDir: "./data/thumbnails",
		},
		Capture: CaptureConfig{
			Strategy: StrategySimulated,
			Reconnect: ReconnectConfig{
				Attempts: 3,
				DelayMS:  5000,
			},
			Video: VideoConfig{
				StopGraceMS: 3000,
			},
			LiveView: LiveViewConfig{
				Width:          640,
				Height:         480,
				FPS:            15,
				FrameTimeoutMS: 5000,
			},
		},
		GPIO: GPIOConfig{
			Backend:        GPIOBackendSimulated,
			PollIntervalMS: 5,
		},
		Buttons: ButtonsConfig{
			LongPressMS: 2000,
		},
		Database: DatabaseConfig{
			Path:        "./data/booth.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "booth-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BOOTH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Booth
	if v := os.Getenv("BOOTH_OUTPUT_DIR"); v != "" {
		cfg.Booth.OutputDir = v
	}

	// Capture
	if v := os.Getenv("BOOTH_CAPTURE_STRATEGY"); v != "" {
		cfg.Capture.Strategy = v
	}
	if v := os.Getenv("BOOTH_CAPTURE_DEVICE"); v != "" {
		cfg.Capture.Device = v
	}

	// GPIO
	if v := os.Getenv("BOOTH_GPIO_BACKEND"); v != "" {
		cfg.GPIO.Backend = v
	}

	// Database
	if v := os.Getenv("BOOTH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BOOTH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BOOTH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BOOTH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BOOTH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BOOTH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Booth validation
	if c.Booth.ID == "" {
		errs = append(errs, "booth.id is required")
	}
	if c.Booth.OutputDir == "" {
		errs = append(errs, "booth.output_dir is required")
	}

	// Capture validation
	switch c.Capture.Strategy {
	case StrategySimulated, StrategyExternalProcess, StrategyTetheredCLI:
	default:
		errs = append(errs, fmt.Sprintf("capture.strategy %q is not recognised (use %s, %s, or %s)",
			c.Capture.Strategy, StrategySimulated, StrategyExternalProcess, StrategyTetheredCLI))
	}
	if c.Capture.Reconnect.Attempts < 0 {
		errs = append(errs, "capture.reconnect.attempts must not be negative")
	}
	if c.Capture.Reconnect.Attempts > 0 && c.Capture.Reconnect.DelayMS <= 0 {
		errs = append(errs, "capture.reconnect.delay_ms must be positive when attempts > 0")
	}

	// GPIO validation
	switch c.GPIO.Backend {
	case GPIOBackendSimulated, GPIOBackendRPIO:
	default:
		errs = append(errs, fmt.Sprintf("gpio.backend %q is not recognised (use %s or %s)",
			c.GPIO.Backend, GPIOBackendSimulated, GPIOBackendRPIO))
	}

	// Button/LED validation: names unique, pins unique across both
	if c.Buttons.LongPressMS <= 0 {
		errs = append(errs, "buttons.long_press_ms must be positive")
	}
	seenNames := make(map[string]bool)
	seenPins := make(map[int]string)
	for _, b := range c.Buttons.Inputs {
		if b.Name == "" {
			errs = append(errs, "buttons.inputs entries require a name")
			continue
		}
		if seenNames[b.Name] {
			errs = append(errs, fmt.Sprintf("button name %q is duplicated", b.Name))
		}
		seenNames[b.Name] = true
		if prev, ok := seenPins[b.Pin]; ok {
			errs = append(errs, fmt.Sprintf("pin %d is assigned to both %q and %q", b.Pin, prev, b.Name))
		}
		seenPins[b.Pin] = b.Name
		if b.DebounceMS < 0 {
			errs = append(errs, fmt.Sprintf("button %q debounce_ms must not be negative", b.Name))
		}
		switch b.Pull {
		case "", "up", "down", "none":
		default:
			errs = append(errs, fmt.Sprintf("button %q pull %q is not recognised (use up, down, or none)", b.Name, b.Pull))
		}
	}
	for _, l := range c.LEDs {
		if l.Name == "" {
			errs = append(errs, "leds entries require a name")
			continue
		}
		if seenNames[l.Name] {
			errs = append(errs, fmt.Sprintf("led name %q is duplicated", l.Name))
		}
		seenNames[l.Name] = true
		if prev, ok := seenPins[l.Pin]; ok {
			errs = append(errs, fmt.Sprintf("pin %d is assigned to both %q and %q", l.Pin, prev, l.Name))
		}
		seenPins[l.Pin] = l.Name
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReconnectDelay returns the capture reconnect interval as a Duration.
func (c CaptureConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.DelayMS) * time.Millisecond
}

// VideoStopGrace returns the video-stop grace period as a Duration.
func (c CaptureConfig) VideoStopGrace() time.Duration {
	return time.Duration(c.Video.StopGraceMS) * time.Millisecond
}

// FrameTimeout returns the live-view frame wait timeout as a Duration.
func (c CaptureConfig) FrameTimeout() time.Duration {
	return time.Duration(c.LiveView.FrameTimeoutMS) * time.Millisecond
}

// LongPressThreshold returns the long-press threshold as a Duration.
func (c ButtonsConfig) LongPressThreshold() time.Duration {
	return time.Duration(c.LongPressMS) * time.Millisecond
}

// GPIOPollInterval returns the input sampling interval as a Duration.
func (c GPIOConfig) GPIOPollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
