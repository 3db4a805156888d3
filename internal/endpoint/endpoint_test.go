package endpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/hmsnyder/tagfd/internal/endpoint"
	"github.com/hmsnyder/tagfd/internal/registry"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

func newReg(t *testing.T) *registry.Registry {
	t.Helper()
	return registry.New(10)
}

func TestOpenFailsOnUnknownTag(t *testing.T) {
	reg := newReg(t)
	if _, err := endpoint.Open(reg, "nope"); err != tagerr.NameInvalid {
		t.Fatalf("want NameInvalid, got %v", err)
	}
}

func TestOpenDoesNotCreate(t *testing.T) {
	reg := newReg(t)
	if _, err := endpoint.Open(reg, "ghost"); err == nil {
		t.Fatal("open of a nonexistent tag must not create it")
	}
	if _, ok := reg.Lookup("ghost"); ok {
		t.Fatal("open must never create a tag as a side effect")
	}
}

func TestReadNonblockingReturnsEAgainWhenNoNewValue(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int32, "t"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "t")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// First read observes the initial zero value as "new" relative to
	// last_seen == 0 only if the initial stamp differs from 0; since
	// NewZero's timestamp comes from wall-clock time at creation, it is
	// nonzero, so the very first read succeeds rather than EAGAIN.
	if _, err := ep.Read(context.Background(), true); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := ep.Read(context.Background(), true); err != tagerr.EAgain {
		t.Fatalf("second nonblocking read: want EAgain, got %v", err)
	}
}

func TestWriteThenReadObservesNewValue(t *testing.T) {
	reg := newReg(t)
	tag, err := reg.Create(tagtype.UInt16, "w")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	writer, err := endpoint.Open(reg, "w")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	reader, err := endpoint.Open(reg, "w")
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}

	// Drain the initial value on the reader so the next read blocks on the
	// write below, not on the zero-value's own timestamp.
	if _, err := reader.Read(context.Background(), true); err != nil {
		t.Fatalf("drain initial: %v", err)
	}

	future := tag.Cell.CurrentStamp() + 1000
	if err := writer.Write(tagtype.NewUInt16(99, future, tagtype.Good)); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := reader.Read(context.Background(), true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v.UInt16() != 99 || v.Timestamp != future {
		t.Fatalf("unexpected value: %+v", v)
	}
}

func TestWriteRejectsTypeMismatchAndDoesNotMutate(t *testing.T) {
	reg := newReg(t)
	tag, err := reg.Create(tagtype.Real64, "typed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "typed")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	before := tag.Cell.Snapshot()
	err = ep.Write(tagtype.NewInt32(1, before.Timestamp+1, tagtype.Good))
	if err != tagerr.TypeMismatch {
		t.Fatalf("want TypeMismatch, got %v", err)
	}
	if after := tag.Cell.Snapshot(); after != before {
		t.Fatalf("cell state mutated by rejected write: before=%+v after=%+v", before, after)
	}
}

func TestReadIntoRejectsShortBuffer(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int8, "short"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "short")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	buf := make([]byte, tagtype.RecordSize-1)
	if _, err := ep.ReadInto(context.Background(), buf, true); err != tagerr.BufferTooSmall {
		t.Fatalf("want BufferTooSmall, got %v", err)
	}
}

func TestWriteFromRejectsShortBuffer(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int8, "short2"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "short2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	buf := make([]byte, tagtype.RecordSize-1)
	if _, err := ep.WriteFrom(buf); err != tagerr.BufferTooSmall {
		t.Fatalf("want BufferTooSmall, got %v", err)
	}
}

func TestReadIntoRoundTripsThroughWriteFrom(t *testing.T) {
	reg := newReg(t)
	tag, err := reg.Create(tagtype.UInt32, "rt")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	writer, err := endpoint.Open(reg, "rt")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	reader, err := endpoint.Open(reg, "rt")
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	if _, err := reader.Read(context.Background(), true); err != nil {
		t.Fatalf("drain: %v", err)
	}

	future := tag.Cell.CurrentStamp() + 1000
	v := tagtype.NewUInt32(4242, future, tagtype.Good)
	record := tagtype.EncodeRecord(v)
	if _, err := writer.WriteFrom(record[:]); err != nil {
		t.Fatalf("writeFrom: %v", err)
	}

	buf := make([]byte, tagtype.RecordSize)
	n, err := reader.ReadInto(context.Background(), buf, true)
	if err != nil {
		t.Fatalf("readInto: %v", err)
	}
	if n != tagtype.RecordSize {
		t.Fatalf("want %d bytes, got %d", tagtype.RecordSize, n)
	}
	got := tagtype.DecodeRecord(buf)
	if got.UInt32() != 4242 || got.Timestamp != future {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestPollReadableReflectsUnseenValue(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int16, "p"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "p")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if ready := ep.Poll(endpoint.Readable | endpoint.Writable); ready&endpoint.Readable == 0 {
		t.Fatal("initial value should be readable before the first read")
	}
	if ready := ep.Poll(endpoint.Writable); ready&endpoint.Writable == 0 {
		t.Fatal("writable must always be reported when requested")
	}

	if _, err := ep.Read(context.Background(), true); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if ready := ep.Poll(endpoint.Readable); ready&endpoint.Readable != 0 {
		t.Fatal("readable bit should clear once the value has been observed")
	}
}

func TestPollWaitWakesOnCommit(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int16, "pw"); err != nil {
		t.Fatalf("create: %v", err)
	}
	writer, err := endpoint.Open(reg, "pw")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	reader, err := endpoint.Open(reg, "pw")
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	if _, err := reader.Read(context.Background(), true); err != nil {
		t.Fatalf("drain: %v", err)
	}

	done := make(chan endpoint.Readiness, 1)
	go func() {
		ready, err := reader.PollWait(context.Background(), endpoint.Readable)
		if err != nil {
			t.Errorf("pollwait error: %v", err)
			return
		}
		done <- ready
	}()

	time.Sleep(10 * time.Millisecond)
	future := time.Now().UnixMilli() + 1
	if err := writer.Write(tagtype.NewInt16(5, uint64(future), tagtype.Good)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ready := <-done:
		if ready&endpoint.Readable == 0 {
			t.Fatal("expected readable after commit")
		}
	case <-time.After(time.Second):
		t.Fatal("pollwait did not wake within 1s")
	}
}

func TestReadCancellationLeavesLastSeenUnchanged(t *testing.T) {
	reg := newReg(t)
	if _, err := reg.Create(tagtype.Int8, "cancel"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ep, err := endpoint.Open(reg, "cancel")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ep.Read(context.Background(), true); err != nil {
		t.Fatalf("drain: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ep.Read(ctx, false); err != tagerr.EIntr {
		t.Fatalf("want EIntr, got %v", err)
	}

	// A clean retry with a fresh context must behave exactly as if the
	// cancelled read had never happened.
	if _, err := ep.Read(context.Background(), true); err != tagerr.EAgain {
		t.Fatalf("want EAgain on retry, got %v", err)
	}
}
