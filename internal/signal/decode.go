package signal

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the signal schema.
const (
	fieldSignalPinConfigs protowire.Number = 1
	fieldSignalPinEvents  protowire.Number = 2

	fieldBatchList protowire.Number = 1

	fieldConfigPinName     protowire.Number = 1
	fieldConfigMode        protowire.Number = 2
	fieldConfigDirection   protowire.Number = 3
	fieldConfigPeriod      protowire.Number = 4
	fieldConfigRequestType protowire.Number = 5

	fieldEventPinName  protowire.Number = 1
	fieldEventPinValue protowire.Number = 2
	fieldEventMode     protowire.Number = 3

	fieldDescMachineName protowire.Number = 1
	fieldDescUID         protowire.Number = 2
	fieldDescVerMajor    protowire.Number = 3
	fieldDescVerMinor    protowire.Number = 4
	fieldDescVerMicro    protowire.Number = 5

	fieldRespCode       protowire.Number = 1
	fieldRespGPIOPins   protowire.Number = 2
	fieldRespAnalogPins protowire.Number = 3
)

// Handler receives decoded batch elements one at a time.
//
// A non-nil error aborts the rest of the batch. Elements already handed to
// the handler are not rolled back.
type Handler interface {
	HandlePinConfig(req PinConfigRequest) error
	HandlePinEvent(ev PinEvent) error
}

// Result describes a decode run.
type Result struct {
	Variant Variant
	// Dispatched counts elements handed to the handler, including one whose
	// handler returned an error.
	Dispatched int
}

// Decode streams a signal message into h.
//
// The envelope is scanned first to learn which batch it carries. Each batch
// element is then decoded and handed to h before the next element's bytes
// are read, so at most one element is held in memory. Any malformed element
// or handler error aborts the message.
func Decode(b []byte, h Handler) (Result, error) {
	if len(b) == 0 {
		return Result{}, ErrEmptyMessage
	}

	variant, err := scanVariant(b)
	if err != nil {
		return Result{}, err
	}

	res := Result{Variant: variant}
	want := fieldSignalPinConfigs
	if variant == VariantPinEvents {
		want = fieldSignalPinEvents
	}

	// A repeated occurrence of the variant field merges into one batch.
	err = forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != want {
			return nil
		}
		return decodeBatch(v, func(elem []byte) error {
			switch variant {
			case VariantPinConfigs:
				req, err := decodePinConfig(elem)
				if err != nil {
					return fmt.Errorf("element %d: %w", res.Dispatched+1, err)
				}
				res.Dispatched++
				if err := h.HandlePinConfig(req); err != nil {
					return fmt.Errorf("%w: element %d (%s): %w", ErrDispatch, res.Dispatched, req.PinName, err)
				}
			default:
				ev, err := decodePinEvent(elem)
				if err != nil {
					return fmt.Errorf("element %d: %w", res.Dispatched+1, err)
				}
				res.Dispatched++
				if err := h.HandlePinEvent(ev); err != nil {
					return fmt.Errorf("%w: element %d (%s): %w", ErrDispatch, res.Dispatched, ev.PinName, err)
				}
			}
			return nil
		})
	})
	return res, err
}

// scanVariant validates the envelope framing and reports its variant.
func scanVariant(b []byte) (Variant, error) {
	var configs, events bool
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, _ []byte) error {
		switch num {
		case fieldSignalPinConfigs, fieldSignalPinEvents:
			if typ != protowire.BytesType {
				return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
			}
			if num == fieldSignalPinConfigs {
				configs = true
			} else {
				events = true
			}
		}
		return nil
	})
	if err != nil {
		return VariantNone, err
	}

	switch {
	case configs && events:
		return VariantNone, ErrAmbiguousVariant
	case configs:
		return VariantPinConfigs, nil
	case events:
		return VariantPinEvents, nil
	default:
		return VariantNone, ErrNoVariant
	}
}

// forEachField walks the top-level fields of b. For length-delimited fields
// v is the payload; for other wire types v is the raw value bytes.
func forEachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(b)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				v = b[:n]
			}
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

// decodeBatch hands every list element of a batch message to fn in order.
func decodeBatch(b []byte, fn func(elem []byte) error) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldBatchList {
			return nil
		}
		if typ != protowire.BytesType {
			return fmt.Errorf("%w: batch list has wire type %d", ErrMalformed, typ)
		}
		return fn(v)
	})
}

func decodePinConfig(b []byte) (PinConfigRequest, error) {
	var req PinConfigRequest
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldConfigPinName:
			s, err := stringField(num, typ, v)
			req.PinName = s
			return err
		case fieldConfigMode:
			x, err := enumField(num, typ, v)
			req.Mode = Mode(x)
			return err
		case fieldConfigDirection:
			x, err := enumField(num, typ, v)
			req.Direction = Direction(x)
			return err
		case fieldConfigPeriod:
			if typ != protowire.Fixed32Type {
				return wireTypeError(num, typ)
			}
			bits, _ := protowire.ConsumeFixed32(v)
			req.Period = math.Float32frombits(bits)
		case fieldConfigRequestType:
			x, err := enumField(num, typ, v)
			req.RequestType = RequestType(x)
			return err
		}
		return nil
	})
	return req, err
}

func decodePinEvent(b []byte) (PinEvent, error) {
	var ev PinEvent
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldEventPinName:
			s, err := stringField(num, typ, v)
			ev.PinName = s
			return err
		case fieldEventPinValue:
			s, err := stringField(num, typ, v)
			ev.PinValue = s
			return err
		case fieldEventMode:
			x, err := enumField(num, typ, v)
			ev.Mode = Mode(x)
			return err
		}
		return nil
	})
	return ev, err
}

// UnmarshalDescriptionRequest decodes a registration description record.
func UnmarshalDescriptionRequest(b []byte) (DescriptionRequest, error) {
	var req DescriptionRequest
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case fieldDescMachineName:
			req.MachineName, err = stringField(num, typ, v)
		case fieldDescUID:
			req.UID, err = stringField(num, typ, v)
		case fieldDescVerMajor:
			req.VerMajor, err = enumField(num, typ, v)
		case fieldDescVerMinor:
			req.VerMinor, err = enumField(num, typ, v)
		case fieldDescVerMicro:
			req.VerMicro, err = enumField(num, typ, v)
		}
		return err
	})
	return req, err
}

// UnmarshalDescriptionResponse decodes the broker's registration result.
// An empty payload decodes to a response with an unspecified code.
func UnmarshalDescriptionResponse(b []byte) (DescriptionResponse, error) {
	var resp DescriptionResponse
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var (
			x   int32
			err error
		)
		switch num {
		case fieldRespCode:
			x, err = enumField(num, typ, v)
			resp.Response = ResponseCode(x)
		case fieldRespGPIOPins:
			x, err = enumField(num, typ, v)
			resp.TotalGPIOPins = x
		case fieldRespAnalogPins:
			x, err = enumField(num, typ, v)
			resp.TotalAnalogPins = x
		}
		return err
	})
	return resp, err
}

func stringField(num protowire.Number, typ protowire.Type, v []byte) (string, error) {
	if typ != protowire.BytesType {
		return "", wireTypeError(num, typ)
	}
	return string(v), nil
}

// enumField decodes an int32 or enum varint. Negative values arrive
// sign-extended to 64 bits.
func enumField(num protowire.Number, typ protowire.Type, v []byte) (int32, error) {
	if typ != protowire.VarintType {
		return 0, wireTypeError(num, typ)
	}
	x, _ := protowire.ConsumeVarint(v)
	return int32(x), nil //nolint:gosec // int32 wire truncation is the protobuf rule
}

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
}
