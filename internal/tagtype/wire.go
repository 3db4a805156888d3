package tagtype

import "encoding/binary"

// RecordSize is the wire size of one value record: 16-byte payload + 8-byte
// timestamp + 2-byte quality + 1-byte dtype, padded to the record's natural
// (8-byte) alignment. Reads and writes transfer exactly one record; short
// transfers fail with BUFFER_TOO_SMALL.
const RecordSize = PayloadSize + 8 + 2 + 1 + 5 // = 32

// EncodeRecord serializes v into the fixed wire layout: payload,
// little-endian timestamp, little-endian quality, dtype byte, then zero
// padding to RecordSize.
func EncodeRecord(v Value) [RecordSize]byte {
	var buf [RecordSize]byte
	copy(buf[0:PayloadSize], v.Raw[:])
	binary.LittleEndian.PutUint64(buf[PayloadSize:PayloadSize+8], v.Timestamp)
	binary.LittleEndian.PutUint16(buf[PayloadSize+8:PayloadSize+10], uint16(v.Quality))
	buf[PayloadSize+10] = byte(v.DType)
	return buf
}

// DecodeRecord parses one value record out of buf. buf must contain at
// least RecordSize bytes; a shorter buffer is the BUFFER_TOO_SMALL
// condition, which callers check before invoking DecodeRecord so that a
// short transfer never partially mutates anything.
func DecodeRecord(buf []byte) Value {
	var v Value
	copy(v.Raw[:], buf[0:PayloadSize])
	v.Timestamp = binary.LittleEndian.Uint64(buf[PayloadSize : PayloadSize+8])
	v.Quality = Quality(binary.LittleEndian.Uint16(buf[PayloadSize+8 : PayloadSize+10]))
	v.DType = DType(buf[PayloadSize+10])
	return v
}
