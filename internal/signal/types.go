package signal

import (
	"fmt"
	"strconv"
)

// Mode is the pin mode carried on the wire.
type Mode int32

// Pin modes.
const (
	ModeUnspecified Mode = 0
	ModeAnalog      Mode = 1
	ModeDigital     Mode = 2
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeAnalog:
		return "analog"
	case ModeDigital:
		return "digital"
	default:
		return "unspecified"
	}
}

// Direction is the pin direction carried on the wire.
type Direction int32

// Pin directions.
const (
	DirectionUnspecified Direction = 0
	DirectionInput       Direction = 1
	DirectionOutput      Direction = 2
)

// String returns the lower-case direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unspecified"
	}
}

// RequestType is the operation of a pin config request.
type RequestType int32

// Request types.
const (
	RequestUnspecified RequestType = 0
	RequestCreate      RequestType = 1
	RequestUpdate      RequestType = 2
	RequestDelete      RequestType = 3
)

// String returns the lower-case request type name.
func (r RequestType) String() string {
	switch r {
	case RequestCreate:
		return "create"
	case RequestUpdate:
		return "update"
	case RequestDelete:
		return "delete"
	default:
		return "unspecified"
	}
}

// PinClass is the type prefix of a pin reference.
type PinClass byte

// Pin classes.
const (
	ClassDigital PinClass = 'D'
	ClassAnalog  PinClass = 'A'
)

// PinRef is a parsed pin reference such as "D5".
type PinRef struct {
	Class  PinClass
	Number int
}

// ParsePinRef parses a type-prefixed pin name. The class must be D or A and
// the remainder decimal digits only, no sign or spaces. Leading zeros are
// accepted, so "D05" is pin 5.
func ParsePinRef(name string) (PinRef, error) {
	if len(name) < 2 { //nolint:mnd // class byte plus at least one digit
		return PinRef{}, fmt.Errorf("%w: %q too short", ErrInvalidPinName, name)
	}
	class := PinClass(name[0])
	if class != ClassDigital && class != ClassAnalog {
		return PinRef{}, fmt.Errorf("%w: unknown class %q in %q", ErrInvalidPinName, name[0], name)
	}
	digits := name[1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return PinRef{}, fmt.Errorf("%w: %q is not a pin number", ErrInvalidPinName, digits)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return PinRef{}, fmt.Errorf("%w: %v", ErrInvalidPinName, err)
	}
	return PinRef{Class: class, Number: n}, nil
}

// String renders the reference back to its wire form.
func (r PinRef) String() string {
	return string(rune(r.Class)) + strconv.Itoa(r.Number)
}

// DigitalPin returns the reference for digital pin n.
func DigitalPin(n int) PinRef {
	return PinRef{Class: ClassDigital, Number: n}
}

// PinConfigRequest asks the device to create, update or delete a pin.
type PinConfigRequest struct {
	RequestType RequestType
	PinName     string
	Mode        Mode
	Direction   Direction
	// Period is the input polling period in seconds.
	Period float32
}

// PinEvent carries a pin value. Values are decimal strings on the wire.
type PinEvent struct {
	PinName  string
	PinValue string
	Mode     Mode
}

// Value parses PinValue as a decimal integer.
func (e PinEvent) Value() (int, error) {
	v, err := strconv.Atoi(e.PinValue)
	if err != nil {
		return 0, fmt.Errorf("%w: pin value %q", ErrMalformed, e.PinValue)
	}
	return v, nil
}

// Variant identifies which batch a signal message carries.
type Variant int

// Variants.
const (
	VariantNone Variant = iota
	VariantPinConfigs
	VariantPinEvents
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantPinConfigs:
		return "pin_configs"
	case VariantPinEvents:
		return "pin_events"
	default:
		return "none"
	}
}

// Message is a signal message. At most one of the batches is populated.
type Message struct {
	PinConfigs []PinConfigRequest
	PinEvents  []PinEvent
}

// Variant reports which batch m carries. A message with both batches set
// reports VariantNone and cannot be encoded.
func (m Message) Variant() Variant {
	switch {
	case m.PinConfigs != nil && m.PinEvents != nil:
		return VariantNone
	case m.PinConfigs != nil:
		return VariantPinConfigs
	case m.PinEvents != nil:
		return VariantPinEvents
	default:
		return VariantNone
	}
}

// NewPinEventMessage wraps a single pin reading into a signal message.
// It does no I/O.
func NewPinEventMessage(mode Mode, ref PinRef, value int) Message {
	return Message{
		PinEvents: []PinEvent{{
			PinName:  ref.String(),
			PinValue: strconv.Itoa(value),
			Mode:     mode,
		}},
	}
}

// ResponseCode is the registration result code.
type ResponseCode int32

// Registration result codes.
const (
	ResponseUnspecified   ResponseCode = 0
	ResponseOK            ResponseCode = 1
	ResponseBoardNotFound ResponseCode = 2
)

// String returns the code name.
func (c ResponseCode) String() string {
	switch c {
	case ResponseOK:
		return "ok"
	case ResponseBoardNotFound:
		return "board_not_found"
	default:
		return "unspecified"
	}
}

// DescriptionRequest is the registration record a device publishes.
type DescriptionRequest struct {
	MachineName string
	UID         string
	VerMajor    int32
	VerMinor    int32
	VerMicro    int32
}

// DescriptionResponse is the broker's answer to a DescriptionRequest.
type DescriptionResponse struct {
	Response        ResponseCode
	TotalGPIOPins   int32
	TotalAnalogPins int32
}
