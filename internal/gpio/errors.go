package gpio

import "errors"

// Domain-specific errors for pin operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPinNotRegistered is returned when an operation references a
	// logical pin name that was never registered.
	ErrPinNotRegistered = errors.New("gpio: pin not registered")

	// ErrNotOutput is returned when a write-type operation targets an
	// input pin.
	ErrNotOutput = errors.New("gpio: pin is not an output")

	// ErrNotInput is returned when an input-only operation targets an
	// output pin.
	ErrNotInput = errors.New("gpio: pin is not an input")

	// ErrBackendUnavailable is returned when the hardware backend
	// cannot be opened (e.g. /dev/gpiomem missing off-device).
	ErrBackendUnavailable = errors.New("gpio: backend unavailable")

	// ErrInvalidConfig is returned for malformed pin configuration.
	ErrInvalidConfig = errors.New("gpio: invalid pin configuration")
)
