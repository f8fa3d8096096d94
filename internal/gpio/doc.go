// Package gpio abstracts named digital lines for Booth Core.
//
// The Controller maps logical names ("capture-button", "error-led")
// onto physical pins through a Backend. Two backends exist:
//
//   - Simulated: in-memory, with Inject to drive raw transitions.
//     Used for development off-device and throughout the tests.
//   - RPIO: Raspberry Pi hardware via memory-mapped registers
//     (github.com/stianeikeland/go-rpio), with polled edge detection.
//
// Inputs get debounced edge delivery: a raw transition starts a settle
// window, any further transition restarts it, and only the level that
// persists for the full window is delivered. Outputs support level
// writes, toggling, and timed blinking that always parks the line low
// when the blink ends.
//
// Output level changes are published on the event bus as led.changed.
package gpio
