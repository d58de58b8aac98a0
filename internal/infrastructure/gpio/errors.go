package gpio

import "errors"

// Domain errors for the gpio package.
var (
	// ErrUnknownBackend is returned for a pins.backend value Open does not know.
	ErrUnknownBackend = errors.New("gpio: unknown backend")

	// ErrLineNotRequested is returned when a pin is used before it is configured.
	ErrLineNotRequested = errors.New("gpio: line not requested")

	// ErrNotOutput is returned when writing a pin configured as input.
	ErrNotOutput = errors.New("gpio: pin is not an output")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gpio: backend closed")
)
