// Package endpoint implements the Tag Endpoint: the per-session, file-like
// contract a client attaches to one tag through. It wraps a Cell plus a
// last-seen marker and exposes open/read/write/poll exactly as a client
// would call them, leaving record (de)serialization to tagtype and
// cross-tag coordination to the registry.
//
// The request-handling shape is lock, check, copy, unlock, with the lock
// living inside the Cell rather than a handler-level map.
package endpoint

import (
	"context"

	"github.com/hmsnyder/tagfd/internal/cell"
	"github.com/hmsnyder/tagfd/internal/registry"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Readiness is the bitmask poll reports.
type Readiness uint8

const (
	Readable Readiness = 1 << 0
	Writable Readiness = 1 << 1
)

// Endpoint is one session's attachment to one tag. The zero value is not
// usable; construct with Open.
type Endpoint struct {
	tagName  string
	dtype    tagtype.DType
	cell     *cell.Cell
	lastSeen uint64
}

// Open binds a new session to the named tag's Value Cell. Open never
// creates a tag; it only attaches to one that already exists.
func Open(reg *registry.Registry, name string) (*Endpoint, error) {
	tag, ok := reg.Lookup(name)
	if !ok {
		return nil, tagerr.NameInvalid
	}
	return &Endpoint{
		tagName: tag.Name,
		dtype:   tag.DType,
		cell:    tag.Cell,
	}, nil
}

// Close releases session state. An Endpoint holds no resources beyond its
// own fields, so Close is a no-op kept for symmetry with Open and to give
// callers a single place to hang session-teardown logging or metrics.
func (e *Endpoint) Close() {}

// Name returns the tag name this session is attached to.
func (e *Endpoint) Name() string { return e.tagName }

// DType returns the attached tag's immutable type discriminant.
func (e *Endpoint) DType() tagtype.DType { return e.dtype }

// Read implements the read contract. If nonblocking is true and no new
// value has committed since the session's last read, Read returns
// tagerr.EAgain immediately. Otherwise it blocks until a new value commits
// or ctx is cancelled, in which case it returns tagerr.EIntr and leaves
// last_seen unchanged so the caller can retry cleanly.
func (e *Endpoint) Read(ctx context.Context, nonblocking bool) (tagtype.Value, error) {
	snap := e.cell.Snapshot()
	if snap.Timestamp == e.lastSeen {
		if nonblocking {
			return tagtype.Value{}, tagerr.EAgain
		}
		changed, err := e.cell.WaitForChange(ctx, e.lastSeen)
		if err != nil {
			return tagtype.Value{}, err
		}
		snap = changed
	}
	e.lastSeen = snap.Timestamp
	return snap, nil
}

// ReadInto implements the buffer-oriented form of read: it encodes the
// observed value into buf and returns the number of bytes written, or
// BUFFER_TOO_SMALL if buf cannot hold a full record. No partial record is
// ever written.
func (e *Endpoint) ReadInto(ctx context.Context, buf []byte, nonblocking bool) (int, error) {
	if len(buf) < tagtype.RecordSize {
		return 0, tagerr.BufferTooSmall
	}
	v, err := e.Read(ctx, nonblocking)
	if err != nil {
		return 0, err
	}
	record := tagtype.EncodeRecord(v)
	copy(buf, record[:])
	return tagtype.RecordSize, nil
}

// Write validates and commits candidate into the attached Cell. A failed
// write never partially mutates the Cell: Commit itself only installs the
// new value after every check passes.
func (e *Endpoint) Write(candidate tagtype.Value) error {
	return e.cell.Commit(candidate)
}

// WriteFrom decodes one value record out of buf and commits it. buf
// shorter than one record fails BUFFER_TOO_SMALL before anything is
// touched.
func (e *Endpoint) WriteFrom(buf []byte) (int, error) {
	if len(buf) < tagtype.RecordSize {
		return 0, tagerr.BufferTooSmall
	}
	staging := tagtype.DecodeRecord(buf[:tagtype.RecordSize])
	if staging.DType != e.dtype {
		return 0, tagerr.TypeMismatch
	}
	if err := e.cell.Commit(staging); err != nil {
		return 0, err
	}
	return tagtype.RecordSize, nil
}

// Poll reports readiness without blocking: Readable iff a value has
// committed since the session's last read, and Writable always (writes
// are never blocked by the endpoint itself). interest is a hint restricting
// which bits the caller cares about, mirroring the requested-vs-reported
// mask idiom of host poll(2)-style interfaces.
func (e *Endpoint) Poll(interest Readiness) Readiness {
	var ready Readiness
	if interest&Readable != 0 && e.cell.CurrentStamp() != e.lastSeen {
		ready |= Readable
	}
	if interest&Writable != 0 {
		ready |= Writable
	}
	return ready
}

// PollWait blocks until the requested readiness is satisfied or ctx is
// cancelled. It registers on the Cell's change condition so that a
// subsequent commit wakes it, per the Tag Endpoint's poll contract.
func (e *Endpoint) PollWait(ctx context.Context, interest Readiness) (Readiness, error) {
	if ready := e.Poll(interest); ready != 0 {
		return ready, nil
	}
	// Writable is always set by Poll when requested, so reaching here means
	// only Readable was requested and it is not yet satisfied.
	if _, err := e.cell.WaitForChange(ctx, e.lastSeen); err != nil {
		return 0, err
	}
	return e.Poll(interest), nil
}
