package capture

import "errors"

// Domain-specific errors for capture operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceUnavailable is returned when the capture device cannot
	// be reached at initialise or probe time. The controller responds
	// with its reconnect policy rather than failing permanently.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")

	// ErrCaptureFailed is returned when a capture tool or subprocess
	// fails during a specific operation. The controller stays Ready.
	ErrCaptureFailed = errors.New("capture: operation failed")

	// ErrUnsupportedOperation is returned when the active strategy
	// lacks the required capability (e.g. video on a tethered DSLR).
	// Never retried.
	ErrUnsupportedOperation = errors.New("capture: operation not supported by strategy")

	// ErrConfiguration is returned for invalid settings values or
	// references to unknown devices.
	ErrConfiguration = errors.New("capture: invalid configuration")

	// ErrBusy is returned when an operation overlaps with one already
	// in flight on the same controller. Callers may retry later.
	ErrBusy = errors.New("capture: operation already in progress")

	// ErrTimeout is returned when a live-view frame wait or a video
	// stop grace period is exceeded.
	ErrTimeout = errors.New("capture: operation timed out")

	// ErrNotRecording is returned by StopVideo without a prior
	// StartVideo.
	ErrNotRecording = errors.New("capture: no video recording in progress")

	// ErrAlreadyRecording is returned by StartVideo while a recording
	// is already in flight.
	ErrAlreadyRecording = errors.New("capture: video recording already in progress")
)
