// Package tagerr defines the stable, client-facing error taxonomy shared by
// every layer of tagfd: the Cell, the Registry, the Endpoint, the
// Administrative Endpoint, and the HTTP transport that fronts them.
package tagerr

// Code is a stable error identifier returned by core operations. It is a
// string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes. Names match the taxonomy one-to-one.
const (
	BufferTooSmall     Code = "buffer_too_small"
	EAgain             Code = "eagain"
	EIntr              Code = "eintr"
	TypeMismatch       Code = "type_mismatch"
	StaleTimestamp     Code = "stale_timestamp"
	TransferFault      Code = "transfer_fault"
	NameTaken          Code = "name_taken"
	NameInvalid        Code = "name_invalid"
	DTypeInvalid       Code = "dtype_invalid"
	CapacityExhausted  Code = "capacity_exhausted"
	AdminBusy          Code = "admin_busy"
	OutOfMemory        Code = "out_of_memory"
)

// Of extracts a Code from an error, defaulting to the empty code when err is
// not one of ours (callers should treat that as "unexpected error").
func Of(err error) (Code, bool) {
	if err == nil {
		return "", false
	}
	if c, ok := err.(Code); ok {
		return c, true
	}
	return "", false
}

// HTTPStatus maps a Code to the HTTP status cmd/tagfdd uses to report it.
func HTTPStatus(c Code) int {
	switch c {
	case EAgain:
		return 204 // no content: no new value yet
	case EIntr:
		return 499 // client closed request / long-poll cancelled
	case BufferTooSmall, TransferFault, NameInvalid, DTypeInvalid:
		return 400
	case TypeMismatch, StaleTimestamp:
		return 409
	case NameTaken:
		return 409
	case CapacityExhausted:
		return 507
	case AdminBusy:
		return 423
	case OutOfMemory:
		return 500
	default:
		return 500
	}
}
