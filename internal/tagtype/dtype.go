// Package tagtype defines the closed set of tag data types, the quality
// word encoding, the fixed-size value record, and its two wire encodings:
// the binary record exchanged with the core and the textual forms used at
// the relay boundary.
package tagtype

import "fmt"

// DType is the type discriminant. The set is closed: no value outside the
// named constants is ever valid, and a tag's DType never changes once set.
type DType uint8

const (
	Invalid   DType = 0
	Int8      DType = 2
	UInt8     DType = 3
	Int16     DType = 4
	UInt16    DType = 5
	Int32     DType = 6
	UInt32    DType = 7
	Int64     DType = 8
	UInt64    DType = 9
	Real32    DType = 10
	Real64    DType = 11
	Timestamp DType = 12
	String    DType = 13
)

var dtypeNames = map[DType]string{
	Invalid:   "INVALID",
	Int8:      "INT8",
	UInt8:     "UINT8",
	Int16:     "INT16",
	UInt16:    "UINT16",
	Int32:     "INT32",
	UInt32:    "UINT32",
	Int64:     "INT64",
	UInt64:    "UINT64",
	Real32:    "REAL32",
	Real64:    "REAL64",
	Timestamp: "TIMESTAMP",
	String:    "STRING",
}

var namesToDType = func() map[string]DType {
	m := make(map[string]DType, len(dtypeNames))
	for d, n := range dtypeNames {
		m[n] = d
	}
	return m
}()

func (d DType) String() string {
	if n, ok := dtypeNames[d]; ok {
		return n
	}
	return fmt.Sprintf("DType(%d)", uint8(d))
}

// Valid reports whether d is one of the closed set of non-INVALID data
// types a tag may be created with.
func (d DType) Valid() bool {
	switch d {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64, Real32, Real64, Timestamp, String:
		return true
	default:
		return false
	}
}

// ParseDType resolves a named dtype for the human text form.
func ParseDType(name string) (DType, bool) {
	d, ok := namesToDType[name]
	return d, ok
}
