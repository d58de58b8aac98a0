package signal

import "errors"

// Domain errors for the signal codec.
var (
	// ErrEmptyMessage is returned when a message carries no bytes.
	ErrEmptyMessage = errors.New("signal: empty message")

	// ErrMalformed is returned when the wire bytes are not a valid message.
	ErrMalformed = errors.New("signal: malformed message")

	// ErrNoVariant is returned when a signal message carries neither batch.
	ErrNoVariant = errors.New("signal: no payload variant present")

	// ErrAmbiguousVariant is returned when a signal message carries both batches.
	ErrAmbiguousVariant = errors.New("signal: both payload variants present")

	// ErrInvalidPinName is returned when a pin reference cannot be parsed.
	ErrInvalidPinName = errors.New("signal: invalid pin name")

	// ErrMessageTooLarge is returned when an encoded message exceeds the
	// encoder capacity. Nothing is written in that case.
	ErrMessageTooLarge = errors.New("signal: message exceeds buffer capacity")

	// ErrDispatch wraps a handler failure that aborted a batch.
	ErrDispatch = errors.New("signal: element dispatch failed")
)
