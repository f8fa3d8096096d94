package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/openbooth/booth-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestClient_WritesNoOpWhenDisconnected(t *testing.T) {
	// A zero client is never connected; every write helper must be a
	// harmless no-op rather than a nil dereference.
	c := &Client{}

	c.WriteCaptureMetric("booth-01", "simulated", "photo", 120.0, true)
	c.WriteButtonMetric("booth-01", "capture", "short")
	c.WriteConnectionMetric("booth-01", "tethered-cli", "lost")
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	c.Flush()
}

func TestClient_HealthCheckDisconnected(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_CloseWithoutConnect(t *testing.T) {
	c := &Client{}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestClient_IsConnected(t *testing.T) {
	c := &Client{connected: true}
	if !c.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	c.connected = false
	if c.IsConnected() {
		t.Error("IsConnected() = true, want false")
	}
}
