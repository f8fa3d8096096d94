// Package mqtt provides MQTT connectivity for the booth.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - A bridge republishing every event bus event to booth/event/{type}
//
// # Architecture
//
// The booth core is the only publisher. External collaborators on the
// same network (slideshow UI, audio cue player, print service) follow
// the session by subscribing to booth/event/+ and watching
// booth/system/status for liveness; none of them talk back to the
// core over MQTT.
//
//	booth core → MQTT broker → kiosk peripherals
//
// The bridge never blocks the event bus: events queue into a bounded
// channel and a single worker publishes them, dropping (and counting)
// what a slow broker cannot keep up with.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bridge := mqtt.NewBridge(client, bus, byte(cfg.MQTT.QoS), logger)
//	bridge.Start()
//	defer bridge.Stop()
package mqtt
