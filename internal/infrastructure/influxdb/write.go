package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCaptureMetric records one capture attempt.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - boothID: station identifier from config
//   - strategy: capture backend ("simulated", "external-process", "tethered-cli")
//   - kind: "photo" or "video"
//   - durationMS: wall time of the capture, excluding countdown
//   - success: whether the capture produced a file
func (c *Client) WriteCaptureMetric(boothID, strategy, kind string, durationMS float64, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"captures",
		map[string]string{
			"booth_id": boothID,
			"strategy": strategy,
			"kind":     kind,
		},
		map[string]interface{}{
			"duration_ms": durationMS,
			"success":     success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteButtonMetric records one physical button press. Press counts
// over time show which stations see real use.
func (c *Client) WriteButtonMetric(boothID, button, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"button_presses",
		map[string]string{
			"booth_id": boothID,
			"button":   button,
			"kind":     kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionMetric records a camera connection state change.
// Frequent lost/restored flips point at flaky cabling before guests
// start complaining.
func (c *Client) WriteConnectionMetric(boothID, strategy, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_changes",
		map[string]string{
			"booth_id": boothID,
			"strategy": strategy,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., backfilled data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
