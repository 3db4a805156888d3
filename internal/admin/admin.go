// Package admin implements the Administrative Endpoint: the single
// channel through which new tags enter the Registry, guarded by
// test-and-set exclusivity so that at most one administrative session is
// attached at a time.
//
// The exclusivity flag is an atomic.Bool compare-and-swap rather than a
// lock, so a creation burst never contends with the read/write hot path.
package admin

import (
	"sync/atomic"

	"github.com/hmsnyder/tagfd/internal/registry"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Channel owns the single administrative session slot over a Registry.
// The zero value is not usable; construct with New.
type Channel struct {
	reg   *registry.Registry
	inUse atomic.Bool
}

// New constructs a Channel fronting reg. FREE initially.
func New(reg *registry.Registry) *Channel {
	return &Channel{reg: reg}
}

// Session is one administrative endpoint attachment. It holds the
// exclusivity slot until Close releases it.
type Session struct {
	ch     *Channel
	closed atomic.Bool
}

// Open attempts to transition the channel FREE → BUSY. If it was already
// BUSY, Open fails with AdminBusy without altering state.
func (ch *Channel) Open() (*Session, error) {
	if !ch.inUse.CompareAndSwap(false, true) {
		return nil, tagerr.AdminBusy
	}
	return &Session{ch: ch}, nil
}

// Close releases the exclusivity slot, transitioning BUSY → FREE. Close on
// an already-closed Session is a safe no-op.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.ch.inUse.Store(false)
	}
}

// Create validates and decodes a fixed-size creation record and delegates
// installation to the Registry. The administrative endpoint never reads;
// there is no corresponding Read method.
func (s *Session) Create(record []byte) (*registry.Tag, error) {
	if len(record) < tagtype.AdminRecordSize {
		return nil, tagerr.TransferFault
	}
	req := tagtype.DecodeCreateRequest(record)
	if req.Action != tagtype.CreateAction {
		return nil, tagerr.NameInvalid
	}
	return s.ch.reg.Create(req.DType, req.Name)
}

// CreateTag is a convenience entry point for callers that already have a
// decoded request (tagcore.Core.CreateTag) rather than a raw wire record.
func (s *Session) CreateTag(dtype tagtype.DType, name string) (*registry.Tag, error) {
	return s.ch.reg.Create(dtype, name)
}

// InUse reports whether an administrative session currently holds the
// channel. Intended for diagnostics and metrics, not for racing against
// Open.
func (ch *Channel) InUse() bool {
	return ch.inUse.Load()
}
