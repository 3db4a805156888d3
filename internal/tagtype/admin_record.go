package tagtype

import (
	"bytes"
	"fmt"
)

// CreateAction is the single accepted action byte in a creation request.
const CreateAction = '+'

// AdminRecordSize is the fixed wire size of an administrative creation
// request: 1 action byte + 1 dtype byte + 256 zero-padded name bytes.
const AdminRecordSize = 1 + 1 + 256

// nameFieldSize is the width of the zero-padded, null-terminated name field
// inside an administrative record. It intentionally exceeds MaxNameLength
// by one so that a MaxNameLength-byte name still leaves room for its
// terminating NUL.
const nameFieldSize = 256

// CreateRequest is the decoded form of an administrative creation record.
type CreateRequest struct {
	Action byte
	DType  DType
	Name   string
}

// EncodeCreateRequest serializes req into the fixed wire layout. The
// caller is responsible for having already validated req.Name's length;
// EncodeCreateRequest only refuses names that cannot physically fit.
func EncodeCreateRequest(req CreateRequest) ([AdminRecordSize]byte, error) {
	var buf [AdminRecordSize]byte
	if len(req.Name) >= nameFieldSize {
		return buf, fmt.Errorf("tagtype: name of %d bytes does not fit the %d-byte NUL-terminated name field", len(req.Name), nameFieldSize)
	}
	buf[0] = req.Action
	buf[1] = byte(req.DType)
	copy(buf[2:2+nameFieldSize], req.Name)
	return buf, nil
}

// DecodeCreateRequest parses an administrative creation record out of buf.
// buf must contain at least AdminRecordSize bytes; any shorter transfer is
// rejected by the caller before this is invoked.
func DecodeCreateRequest(buf []byte) CreateRequest {
	nameField := buf[2 : 2+nameFieldSize]
	if nul := bytes.IndexByte(nameField, 0); nul >= 0 {
		nameField = nameField[:nul]
	}
	return CreateRequest{
		Action: buf[0],
		DType:  DType(buf[1]),
		Name:   string(nameField),
	}
}
