package pin

import "errors"

// Domain errors for the pin package.
var (
	// ErrPinOutOfRange is returned when a pin id is outside the board's range.
	ErrPinOutOfRange = errors.New("pin: pin id out of range")

	// ErrRegistryFull is returned when no more pins can be tracked.
	ErrRegistryFull = errors.New("pin: registry full")

	// ErrPinNotFound is returned when a pin is not configured.
	ErrPinNotFound = errors.New("pin: pin not configured")

	// ErrUnsupportedDirection is returned when a persisted pin has no direction.
	ErrUnsupportedDirection = errors.New("pin: unsupported direction")

	// ErrUnsupportedRequest is returned for an unknown request type.
	ErrUnsupportedRequest = errors.New("pin: unsupported request type")
)
