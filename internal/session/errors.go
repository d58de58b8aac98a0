package session

import "errors"

// Fatal session errors. Transient faults never leave the run loop.
var (
	// ErrTopicsIncomplete is returned when the topic set cannot be built.
	ErrTopicsIncomplete = errors.New("session: topic set incomplete")

	// ErrBrokerRejected is returned after a permanent broker refusal
	// (bad protocol version, rejected client id, bad credentials, not authorized).
	ErrBrokerRejected = errors.New("session: broker rejected connection")

	// ErrRegistrationFailed is returned when every registration attempt timed out.
	ErrRegistrationFailed = errors.New("session: registration failed")

	// ErrBoardNotFound is returned when the broker does not know the board type.
	ErrBoardNotFound = errors.New("session: board not found")

	// ErrInvalidPolicy is returned for an unknown inbound policy name.
	ErrInvalidPolicy = errors.New("session: invalid inbound policy")
)

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTopicsIncomplete) ||
		errors.Is(err, ErrBrokerRejected) ||
		errors.Is(err, ErrRegistrationFailed) ||
		errors.Is(err, ErrBoardNotFound)
}
