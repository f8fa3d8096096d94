// Package telemetry observes the event bus and records operational
// metrics: capture durations and outcomes, button press counts, and
// camera connection changes.
//
// The recorder is optional; when InfluxDB is disabled in config the
// booth simply runs without it.
package telemetry
