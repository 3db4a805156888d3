package relay

import (
	"testing"

	"github.com/hmsnyder/tagfd/internal/tagtype"
)

func TestMachineRoundTripEveryDType(t *testing.T) {
	values := []tagtype.Value{
		tagtype.NewInt8(-12, 1000, tagtype.Good),
		tagtype.NewUInt8(200, 1000, tagtype.Good),
		tagtype.NewInt16(-1234, 1000, tagtype.Uncertain),
		tagtype.NewUInt16(5000, 1000, tagtype.Good),
		tagtype.NewInt32(-123456, 1000, tagtype.Bad),
		tagtype.NewUInt32(123456, 1000, tagtype.Good),
		tagtype.NewInt64(-123456789, 1000, tagtype.Good),
		tagtype.NewUInt64(123456789, 1000, tagtype.Disconnected),
		tagtype.NewReal32(3.5, 1000, tagtype.Good),
		tagtype.NewReal64(2.71828, 1000, tagtype.Good),
		tagtype.NewTimestampValue(1_700_000_000_000, 1000, tagtype.Good),
	}
	for _, v := range values {
		line := EmitMachine(v)
		got, err := ParseMachine(v.DType, line)
		if err != nil {
			t.Fatalf("ParseMachine(%q): %v", line, err)
		}
		if got.Raw != v.Raw || got.Timestamp != v.Timestamp || got.Quality != v.Quality || got.DType != v.DType {
			t.Fatalf("round trip mismatch for %s: got %+v, want %+v", v.DType, got, v)
		}
	}
}

func TestMachineRoundTripString(t *testing.T) {
	v, err := tagtype.NewString([]byte("hello world"), 1000, tagtype.Good)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	line := EmitMachine(v)
	got, err := ParseMachine(tagtype.String, line)
	if err != nil {
		t.Fatalf("ParseMachine: %v", err)
	}
	if string(got.StringBytes()) != "hello world" {
		t.Fatalf("unexpected string payload: %q", got.StringBytes())
	}
}

func TestHumanRoundTripEveryDType(t *testing.T) {
	values := []tagtype.Value{
		tagtype.NewInt8(-12, 1_700_000_000_123, tagtype.Good),
		tagtype.NewUInt8(200, 1_700_000_000_124, tagtype.Good),
		tagtype.NewInt16(-1234, 1_700_000_000_125, tagtype.Uncertain),
		tagtype.NewUInt16(5000, 1_700_000_000_126, tagtype.Good),
		tagtype.NewInt32(-123456, 1_700_000_000_127, tagtype.Bad),
		tagtype.NewUInt32(123456, 1_700_000_000_456, tagtype.Uncertain),
		tagtype.NewInt64(-123456789, 1_700_000_000_128, tagtype.Good),
		tagtype.NewUInt64(123456789, 1_700_000_000_129, tagtype.Disconnected),
		tagtype.NewReal32(3.5, 1_700_000_000_130, tagtype.Good),
		tagtype.NewReal64(2.71828, 1_700_000_000_789, tagtype.Bad),
		tagtype.NewTimestampValue(1_700_000_000_000, 1_700_000_000_131, tagtype.Good),
	}
	for _, v := range values {
		line := EmitHuman(v)
		got, err := ParseHuman(line)
		if err != nil {
			t.Fatalf("ParseHuman(%q): %v", line, err)
		}
		if got.Raw != v.Raw || got.Timestamp != v.Timestamp || got.Quality != v.Quality || got.DType != v.DType {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, v)
		}
	}
}

func TestHumanRoundTripPreservesVendorBits(t *testing.T) {
	v := tagtype.NewInt32(-987, 1_700_000_000_321, tagtype.NewQuality(tagtype.Good, 0x1A3F))
	line := EmitHuman(v)
	got, err := ParseHuman(line)
	if err != nil {
		t.Fatalf("ParseHuman(%q): %v", line, err)
	}
	if got.Quality != v.Quality {
		t.Fatalf("vendor bits not preserved: got %#x, want %#x", uint16(got.Quality), uint16(v.Quality))
	}
	if got.Raw != v.Raw || got.Timestamp != v.Timestamp || got.DType != v.DType {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, v)
	}
}

func TestParseMachineRejectsMalformedLine(t *testing.T) {
	if _, err := ParseMachine(tagtype.Int8, "not enough fields"); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestParseHumanRejectsUnknownDType(t *testing.T) {
	if _, err := ParseHuman("bogus 2026-01-01 00:00:00.000 good 1"); err == nil {
		t.Fatal("expected error for unknown dtype")
	}
}
