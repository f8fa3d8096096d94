// Package influxdb provides optional time-series telemetry for the
// booth.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring. Recorded series:
//   - capture attempts (duration, success, strategy, kind)
//   - physical button presses
//   - camera connection state changes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off, carry on without it
//	}
//	defer client.Close()
//
//	client.WriteCaptureMetric("booth-01", "tethered-cli", "photo", 842.0, true)
//
// # Error Handling
//
// Writes are non-blocking and batched; batch errors surface through
// the SetOnError callback. Connection and health check errors are
// returned directly. Telemetry must never take a booth down: every
// write helper is a no-op on a disconnected client.
package influxdb
