// Booth Core - Photobooth Capture Station
//
// This is the main entry point for the Booth Core daemon. Booth Core
// drives a kiosk photobooth: camera capture, live view, physical
// buttons and LEDs, and the REST/WebSocket surface the kiosk
// front-end talks to. Designed for:
//   - Unattended operation on a Raspberry Pi
//   - Offline-first capture (MQTT and InfluxDB are optional)
//   - Swappable capture backends (simulated, webcam, tethered DSLR)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openbooth/booth-core/migrations"

	"github.com/openbooth/booth-core/internal/api"
	"github.com/openbooth/booth-core/internal/buttons"
	"github.com/openbooth/booth-core/internal/capture"
	"github.com/openbooth/booth-core/internal/events"
	"github.com/openbooth/booth-core/internal/gpio"
	"github.com/openbooth/booth-core/internal/infrastructure/config"
	"github.com/openbooth/booth-core/internal/infrastructure/database"
	"github.com/openbooth/booth-core/internal/infrastructure/influxdb"
	"github.com/openbooth/booth-core/internal/infrastructure/logging"
	"github.com/openbooth/booth-core/internal/infrastructure/mqtt"
	"github.com/openbooth/booth-core/internal/schedule"
	"github.com/openbooth/booth-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Booth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := capture.NewRepository(db)

	// Event bus and scheduler are shared by every component
	bus := events.NewBus()
	sched := schedule.New()

	// GPIO controller with the configured backend
	backend, err := buildGPIOBackend(cfg, sched)
	if err != nil {
		return fmt.Errorf("opening GPIO backend: %w", err)
	}
	pins, err := gpio.NewController(backend, gpio.ControllerDeps{
		Scheduler: sched,
		Bus:       bus,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating GPIO controller: %w", err)
	}
	defer func() {
		log.Info("releasing GPIO pins")
		if cleanErr := pins.Cleanup(); cleanErr != nil {
			log.Error("error releasing GPIO pins", "error", cleanErr)
		}
	}()

	for _, led := range cfg.LEDs {
		if regErr := pins.RegisterOutput(gpio.OutputConfig{
			Name:      led.Name,
			Pin:       led.Pin,
			DefaultOn: led.DefaultOn,
		}); regErr != nil {
			return fmt.Errorf("registering LED %q: %w", led.Name, regErr)
		}
	}
	log.Info("GPIO controller initialised",
		"backend", cfg.GPIO.Backend,
		"leds", len(cfg.LEDs),
	)

	// Capture controller
	ctrl, err := capture.NewController(cfg, capture.ControllerDeps{
		Scheduler: sched,
		Bus:       bus,
		Logger:    log,
		Recorder:  repo,
	})
	if err != nil {
		return fmt.Errorf("creating capture controller: %w", err)
	}
	defer func() {
		log.Info("closing capture controller")
		if closeErr := ctrl.Close(); closeErr != nil {
			log.Error("error closing capture controller", "error", closeErr)
		}
	}()

	// Initialise the capture backend. Failure is not fatal: the
	// controller retries on its reconnect timer and every API call
	// re-attempts lazily.
	if initErr := ctrl.Initialize(ctx); initErr != nil {
		log.Warn("capture backend not ready at startup", "error", initErr)
	} else {
		log.Info("capture backend ready", "strategy", cfg.Capture.Strategy)
	}

	// Button dispatcher with the default kiosk wiring
	dispatcher, err := setupButtons(cfg, pins, sched, bus, ctrl, log)
	if err != nil {
		return fmt.Errorf("setting up buttons: %w", err)
	}
	defer func() {
		log.Info("closing button dispatcher")
		dispatcher.Close()
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// Bridge re-publishes every bus event to booth/event/{type}
		bridge = mqtt.NewBridge(mqttClient, bus, byte(cfg.MQTT.QoS), log)
		bridge.Start()
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		recorder := telemetry.NewRecorder(influxClient, bus, cfg.Booth.ID, func() string {
			return string(ctrl.StrategyType())
		})
		recorder.Start()
		defer func() {
			log.Info("stopping telemetry recorder")
			recorder.Stop()
		}()
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Capture:    ctrl,
		Pins:       pins,
		Dispatcher: dispatcher,
		Bus:        bus,
		Repo:       repo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("shutting down API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error shutting down API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, telemetry, InfluxDB, MQTT bridge, MQTT, dispatcher,
	// capture controller, GPIO, database.

	log.Info("Booth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BOOTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOOTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildGPIOBackend constructs the pin backend named in the config.
func buildGPIOBackend(cfg *config.Config, sched schedule.Scheduler) (gpio.Backend, error) {
	switch cfg.GPIO.Backend {
	case config.GPIOBackendRPIO:
		return gpio.NewRPIO(cfg.GPIO.GPIOPollInterval(), sched), nil
	case config.GPIOBackendSimulated:
		return gpio.NewSimulated(), nil
	default:
		return nil, fmt.Errorf("unknown GPIO backend %q", cfg.GPIO.Backend)
	}
}

// setupButtons registers the configured buttons and binds the default
// kiosk wiring to the button named "capture":
//   - short press in photo mode takes a picture
//   - long press in photo mode starts a recording (mode flips to recording)
//   - short press in recording mode stops the recording (mode flips back)
//
// Other configured buttons are registered and publish press events but
// carry no default actions; bindings for them come from the front-end
// via the API or from custom builds.
func setupButtons(cfg *config.Config, pins *gpio.Controller, sched schedule.Scheduler, bus *events.Bus, ctrl *capture.Controller, log *logging.Logger) (*buttons.Dispatcher, error) {
	// First configured LED named "error" doubles as the action failure
	// indicator.
	errorLED := ""
	for _, led := range cfg.LEDs {
		if led.Name == "error" {
			errorLED = led.Name
			break
		}
	}

	dispatcher := buttons.NewDispatcher(cfg.Buttons, buttons.DispatcherDeps{
		Pins:      pins,
		Scheduler: sched,
		Bus:       bus,
		Logger:    log,
		ErrorLED:  errorLED,
	})

	for _, btn := range cfg.Buttons.Inputs {
		if err := dispatcher.Register(btn); err != nil {
			dispatcher.Close()
			return nil, fmt.Errorf("registering button %q: %w", btn.Name, err)
		}
	}
	log.Info("buttons registered",
		"count", len(cfg.Buttons.Inputs),
		"long_press", cfg.Buttons.LongPressThreshold(),
	)

	dispatcher.Bind("capture", buttons.PressShort, buttons.ModePhoto, func(actx context.Context) error {
		_, err := ctrl.Capture(actx, capture.Options{Countdown: 3, Sound: true, Flash: true})
		return err
	})
	dispatcher.Bind("capture", buttons.PressLong, buttons.ModePhoto, func(actx context.Context) error {
		if err := ctrl.StartVideo(actx); err != nil {
			return err
		}
		dispatcher.SetMode(buttons.ModeRecording)
		return nil
	})
	dispatcher.Bind("capture", buttons.PressShort, buttons.ModeRecording, func(actx context.Context) error {
		if _, err := ctrl.StopVideo(actx); err != nil {
			return err
		}
		dispatcher.SetMode(buttons.ModePhoto)
		return nil
	})

	return dispatcher, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when their subsystem is disabled.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
