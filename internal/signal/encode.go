package signal

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultCapacity is the outgoing buffer size used by devices.
const DefaultCapacity = 512

// Encoder serializes signal messages into a fixed-capacity buffer.
//
// The slice returned by Encode aliases the encoder's buffer and is only
// valid until the next call. An Encoder is not safe for concurrent use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder whose output never exceeds capacity bytes.
func NewEncoder(capacity int) *Encoder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Capacity returns the maximum encoded size.
func (e *Encoder) Capacity() int {
	return cap(e.buf)
}

// Encode serializes m. The size is computed before anything is written, so
// on error the buffer holds no partial message.
func (e *Encoder) Encode(m Message) ([]byte, error) {
	e.buf = e.buf[:0]

	var field protowire.Number
	switch m.Variant() {
	case VariantPinConfigs:
		field = fieldSignalPinConfigs
	case VariantPinEvents:
		field = fieldSignalPinEvents
	default:
		if m.PinConfigs != nil && m.PinEvents != nil {
			return nil, ErrAmbiguousVariant
		}
		return nil, ErrNoVariant
	}

	batch := batchSize(m)
	size := protowire.SizeTag(field) + protowire.SizeBytes(batch)
	if size > cap(e.buf) {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrMessageTooLarge, size, cap(e.buf))
	}

	b := protowire.AppendTag(e.buf, field, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(batch)) //nolint:gosec // sizes are non-negative
	if field == fieldSignalPinConfigs {
		for _, req := range m.PinConfigs {
			b = protowire.AppendTag(b, fieldBatchList, protowire.BytesType)
			b = protowire.AppendVarint(b, uint64(pinConfigSize(req))) //nolint:gosec // sizes are non-negative
			b = appendPinConfig(b, req)
		}
	} else {
		for _, ev := range m.PinEvents {
			b = protowire.AppendTag(b, fieldBatchList, protowire.BytesType)
			b = protowire.AppendVarint(b, uint64(pinEventSize(ev))) //nolint:gosec // sizes are non-negative
			b = appendPinEvent(b, ev)
		}
	}
	e.buf = b
	return b, nil
}

// Marshal encodes m into a new slice with no capacity bound.
func Marshal(m Message) ([]byte, error) {
	size := protowire.SizeTag(fieldSignalPinEvents) + protowire.SizeBytes(batchSize(m))
	return NewEncoder(size).Encode(m)
}

func batchSize(m Message) int {
	n := 0
	for _, req := range m.PinConfigs {
		n += protowire.SizeTag(fieldBatchList) + protowire.SizeBytes(pinConfigSize(req))
	}
	for _, ev := range m.PinEvents {
		n += protowire.SizeTag(fieldBatchList) + protowire.SizeBytes(pinEventSize(ev))
	}
	return n
}

func pinConfigSize(req PinConfigRequest) int {
	return sizeString(fieldConfigPinName, req.PinName) +
		sizeEnum(fieldConfigMode, int32(req.Mode)) +
		sizeEnum(fieldConfigDirection, int32(req.Direction)) +
		sizeFloat(fieldConfigPeriod, req.Period) +
		sizeEnum(fieldConfigRequestType, int32(req.RequestType))
}

func appendPinConfig(b []byte, req PinConfigRequest) []byte {
	b = appendString(b, fieldConfigPinName, req.PinName)
	b = appendEnum(b, fieldConfigMode, int32(req.Mode))
	b = appendEnum(b, fieldConfigDirection, int32(req.Direction))
	b = appendFloat(b, fieldConfigPeriod, req.Period)
	return appendEnum(b, fieldConfigRequestType, int32(req.RequestType))
}

func pinEventSize(ev PinEvent) int {
	return sizeString(fieldEventPinName, ev.PinName) +
		sizeString(fieldEventPinValue, ev.PinValue) +
		sizeEnum(fieldEventMode, int32(ev.Mode))
}

func appendPinEvent(b []byte, ev PinEvent) []byte {
	b = appendString(b, fieldEventPinName, ev.PinName)
	b = appendString(b, fieldEventPinValue, ev.PinValue)
	return appendEnum(b, fieldEventMode, int32(ev.Mode))
}

// MarshalDescriptionRequest encodes a registration description record.
func MarshalDescriptionRequest(req DescriptionRequest) []byte {
	var b []byte
	b = appendString(b, fieldDescMachineName, req.MachineName)
	b = appendString(b, fieldDescUID, req.UID)
	b = appendEnum(b, fieldDescVerMajor, req.VerMajor)
	b = appendEnum(b, fieldDescVerMinor, req.VerMinor)
	return appendEnum(b, fieldDescVerMicro, req.VerMicro)
}

// MarshalDescriptionResponse encodes a registration result.
func MarshalDescriptionResponse(resp DescriptionResponse) []byte {
	var b []byte
	b = appendEnum(b, fieldRespCode, int32(resp.Response))
	b = appendEnum(b, fieldRespGPIOPins, resp.TotalGPIOPins)
	return appendEnum(b, fieldRespAnalogPins, resp.TotalAnalogPins)
}

// Zero values are omitted, as proto3 does for scalar fields.

func sizeString(num protowire.Number, s string) int {
	if s == "" {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func sizeEnum(num protowire.Number, v int32) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(uint64(int64(v))) //nolint:gosec // sign extension is the wire rule
}

func appendEnum(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v))) //nolint:gosec // sign extension is the wire rule
}

func sizeFloat(num protowire.Number, f float32) int {
	if math.Float32bits(f) == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeFixed32()
}

func appendFloat(b []byte, num protowire.Number, f float32) []byte {
	bits := math.Float32bits(f)
	if bits == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, bits)
}
