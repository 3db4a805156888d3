package tagtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadSize is the width of the payload union.
const PayloadSize = 16

// Value is the fixed-size tag value record: a payload union sized to the
// largest primitive, a type discriminant, a monotonic millisecond
// timestamp, and a quality word. It is always copied by value — the Cell
// stores one of these and hands out whole copies on read, never references
// into shared state, so there is no way for a reader to observe a torn
// mixture of old and new fields.
type Value struct {
	DType     DType
	Timestamp uint64 // milliseconds since Unix epoch
	Quality   Quality
	Raw       [PayloadSize]byte
}

func zeroPayload(dtype DType, ts uint64, q Quality) Value {
	return Value{DType: dtype, Timestamp: ts, Quality: q}
}

// NewZero builds the zeroed value a freshly created tag is initialized
// with: zero payload, the tag's dtype, the given timestamp, and UNCERTAIN
// quality.
func NewZero(dtype DType, ts uint64) Value {
	return zeroPayload(dtype, ts, Uncertain)
}

func putInt(raw *[PayloadSize]byte, width int, bits uint64) {
	switch width {
	case 1:
		raw[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(raw[:2], uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(raw[:4], uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(raw[:8], bits)
	}
}

func getUint(raw [PayloadSize]byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw[:2]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw[:4]))
	case 8:
		return binary.LittleEndian.Uint64(raw[:8])
	}
	return 0
}

// NewInt8, NewUInt8, ... construct a Value of the matching dtype. These are
// the only supported ways to populate the payload union: the discriminant
// and the bytes are always set together, so a Value can never carry a
// dtype/payload mismatch in memory.
func NewInt8(v int8, ts uint64, q Quality) Value {
	val := zeroPayload(Int8, ts, q)
	putInt(&val.Raw, 1, uint64(uint8(v)))
	return val
}

func NewUInt8(v uint8, ts uint64, q Quality) Value {
	val := zeroPayload(UInt8, ts, q)
	putInt(&val.Raw, 1, uint64(v))
	return val
}

func NewInt16(v int16, ts uint64, q Quality) Value {
	val := zeroPayload(Int16, ts, q)
	putInt(&val.Raw, 2, uint64(uint16(v)))
	return val
}

func NewUInt16(v uint16, ts uint64, q Quality) Value {
	val := zeroPayload(UInt16, ts, q)
	putInt(&val.Raw, 2, uint64(v))
	return val
}

func NewInt32(v int32, ts uint64, q Quality) Value {
	val := zeroPayload(Int32, ts, q)
	putInt(&val.Raw, 4, uint64(uint32(v)))
	return val
}

func NewUInt32(v uint32, ts uint64, q Quality) Value {
	val := zeroPayload(UInt32, ts, q)
	putInt(&val.Raw, 4, uint64(v))
	return val
}

func NewInt64(v int64, ts uint64, q Quality) Value {
	val := zeroPayload(Int64, ts, q)
	putInt(&val.Raw, 8, uint64(v))
	return val
}

func NewUInt64(v uint64, ts uint64, q Quality) Value {
	val := zeroPayload(UInt64, ts, q)
	putInt(&val.Raw, 8, v)
	return val
}

func NewReal32(v float32, ts uint64, q Quality) Value {
	val := zeroPayload(Real32, ts, q)
	binary.LittleEndian.PutUint32(val.Raw[:4], math.Float32bits(v))
	return val
}

func NewReal64(v float64, ts uint64, q Quality) Value {
	val := zeroPayload(Real64, ts, q)
	binary.LittleEndian.PutUint64(val.Raw[:8], math.Float64bits(v))
	return val
}

func NewTimestampValue(v uint64, ts uint64, q Quality) Value {
	val := zeroPayload(Timestamp, ts, q)
	putInt(&val.Raw, 8, v)
	return val
}

// NewString builds a STRING value. s must be at most PayloadSize bytes; the
// wire form is not null-terminated, so a longer string is rejected here with
// an error, never silently truncated.
func NewString(s []byte, ts uint64, q Quality) (Value, error) {
	if len(s) > PayloadSize {
		return Value{}, fmt.Errorf("tagtype: string payload of %d bytes exceeds %d-byte limit", len(s), PayloadSize)
	}
	val := zeroPayload(String, ts, q)
	copy(val.Raw[:], s)
	return val, nil
}

func (v Value) Int8() int8    { return int8(v.Raw[0]) }
func (v Value) UInt8() uint8  { return v.Raw[0] }
func (v Value) Int16() int16  { return int16(getUint(v.Raw, 2)) }
func (v Value) UInt16() uint16 { return uint16(getUint(v.Raw, 2)) }
func (v Value) Int32() int32  { return int32(getUint(v.Raw, 4)) }
func (v Value) UInt32() uint32 { return uint32(getUint(v.Raw, 4)) }
func (v Value) Int64() int64  { return int64(getUint(v.Raw, 8)) }
func (v Value) UInt64() uint64 { return getUint(v.Raw, 8) }
func (v Value) Real32() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.Raw[:4]))
}
func (v Value) Real64() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Raw[:8]))
}
func (v Value) TimestampValue() uint64 { return getUint(v.Raw, 8) }

// StringBytes returns the STRING payload, trimmed of trailing NUL padding
// (the stored form is zero-padded but not null-terminated; trimming is a
// display convenience, the canonical form is the full 16-byte slice).
func (v Value) StringBytes() []byte {
	raw := v.Raw[:]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return append([]byte(nil), raw[:end]...)
}
