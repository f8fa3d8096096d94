// Package process manages external capture tool subprocesses.
//
// The webcam and DSLR capture strategies shell out to ffmpeg and
// gphoto2. This package provides the two primitives they need:
//
//   - Run: execute a tool to completion with a timeout and return its
//     combined output (one-shot stills, settings changes, detection).
//   - Start/Handle: launch a long-running tool (video recording,
//     live-view streaming) with stdout optionally wired to a byte sink,
//     then stop it gracefully with SIGTERM, a grace period, and SIGKILL
//     as a last resort.
//
// Processes run in their own process group so that a stop signal
// reaches any children the tool spawns.
//
// Reconnection policy lives in the capture controller, not here: a
// handle runs its process exactly once and reports the exit via Done
// and Err.
//
// # Thread Safety
//
// Handle is safe for concurrent use.
package process
