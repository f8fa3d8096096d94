// Package events provides the in-process event bus for Booth Core.
//
// Components publish typed events (capture lifecycle, countdown ticks,
// button presses, connection state changes) and other components
// subscribe to react: the MQTT bridge republishes events to the broker,
// the WebSocket hub pushes them to UI clients, LED controllers blink on
// failures.
//
// Delivery is synchronous and ordered: Publish invokes every matching
// handler on the publisher's goroutine, in subscription order, before
// returning. Handlers that need to do slow work should hand off to
// their own goroutine. A panicking handler is recovered and logged so
// one bad subscriber cannot take down the publisher or starve the
// handlers after it.
//
// # Usage
//
//	bus := events.NewBus()
//	unsubscribe := bus.Subscribe(events.TypeCaptureCompleted, func(ev events.Event) {
//	    result := ev.Payload.(capture.Result)
//	    // ...
//	})
//	defer unsubscribe()
//
//	bus.Publish(events.TypeCaptureCompleted, result)
//
// # Thread Safety
//
// Bus is safe for concurrent use. Handlers for a single Publish call
// run sequentially; concurrent Publish calls may interleave.
package events
