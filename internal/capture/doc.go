// Package capture implements the camera abstraction for Booth Core.
//
// Three backends (strategies) sit behind one interface:
//
//   - Simulated: synthetic frames, no hardware. Default for
//     development and the fallback when no device is detected.
//   - External-process webcam: stills, recordings, and MJPEG live view
//     via ffmpeg subprocesses.
//   - Tethered CLI DSLR: capture-and-download and settings via the
//     gphoto2 command line. No video recording on this path.
//
// The Controller owns exactly one active strategy and is the only
// entry point for callers. It serialises subprocess-bound operations
// (rejecting overlap with ErrBusy), runs capture countdowns, applies
// the reconnect policy after failed initialisation, and publishes
// lifecycle events on the bus.
//
// # Connection lifecycle
//
//	Uninitialized -> Initializing -> Ready
//	                      |              ^
//	                      v              |
//	                Reconnecting --------+ (retry succeeds)
//	                      |
//	                      v
//	                   Failed (attempts exhausted; explicit
//	                           re-initialise or switch required)
//
// # Errors
//
// All failures map onto the sentinel taxonomy in errors.go; check with
// errors.Is. Strategy-level failures are wrapped into the nearest
// matching kind before reaching the controller's caller.
package capture
