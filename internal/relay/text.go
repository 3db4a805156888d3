// Package relay implements a text-stream relay: a client of tagfd that
// bridges a tag's committed values onto the two textual encodings defined
// for stream consumers — never part of the kernel-facing wire contract,
// but required to round-trip for every dtype.
package relay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// humanTimeLayout is "YYYY-MM-DD HH:MM:SS.mmm", to millisecond precision.
const humanTimeLayout = "2006-01-02 15:04:05.000"

// EmitMachine renders v as "<quality_u16> <timestamp_u64> <value>".
func EmitMachine(v tagtype.Value) string {
	return fmt.Sprintf("%d %d %s", uint16(v.Quality), v.Timestamp, formatValueField(v))
}

// EmitHuman renders v with a named dtype, a millisecond-precision formatted
// timestamp, and a named quality: "<dtype> <timestamp> <quality> <value>".
// The quality field carries its vendor bits alongside the class name
// (e.g. "GOOD(123)") so the human form round-trips a value exactly, the
// same way vendor bits are never dropped from the machine form.
func EmitHuman(v tagtype.Value) string {
	ts := time.UnixMilli(int64(v.Timestamp)).UTC().Format(humanTimeLayout)
	return fmt.Sprintf("%s %s %s %s", v.DType, ts, formatQuality(v.Quality), formatValueField(v))
}

// formatQuality renders q as its class name followed by its 14 vendor bits
// in parentheses, with no internal space so it stays one field in the
// space-separated human line.
func formatQuality(q tagtype.Quality) string {
	return fmt.Sprintf("%s(%d)", q, q.Vendor())
}

// parseQuality is the inverse of formatQuality.
func parseQuality(s string) (tagtype.Quality, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, fmt.Errorf("relay: malformed quality %q", s)
	}
	class, ok := tagtype.ParseQualityClass(s[:open])
	if !ok {
		return 0, fmt.Errorf("relay: unknown quality class %q", s[:open])
	}
	vendor, err := strconv.ParseUint(s[open+1:len(s)-1], 10, 14)
	if err != nil {
		return 0, fmt.Errorf("relay: bad vendor bits in %q: %w", s, err)
	}
	return tagtype.NewQuality(class, uint16(vendor)), nil
}

func formatValueField(v tagtype.Value) string {
	switch v.DType {
	case tagtype.Int8:
		return strconv.FormatInt(int64(v.Int8()), 10)
	case tagtype.UInt8:
		return strconv.FormatUint(uint64(v.UInt8()), 10)
	case tagtype.Int16:
		return strconv.FormatInt(int64(v.Int16()), 10)
	case tagtype.UInt16:
		return strconv.FormatUint(uint64(v.UInt16()), 10)
	case tagtype.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case tagtype.UInt32:
		return strconv.FormatUint(uint64(v.UInt32()), 10)
	case tagtype.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case tagtype.UInt64:
		return strconv.FormatUint(v.UInt64(), 10)
	case tagtype.Real32:
		return strconv.FormatFloat(float64(v.Real32()), 'g', -1, 32)
	case tagtype.Real64:
		return strconv.FormatFloat(v.Real64(), 'g', -1, 64)
	case tagtype.Timestamp:
		return strconv.FormatUint(v.TimestampValue(), 10)
	case tagtype.String:
		return quoteString(v.StringBytes())
	default:
		return ""
	}
}

// quoteString renders a STRING payload so that whitespace in the value
// can't be confused with the field separator by ParseMachine/ParseHuman.
func quoteString(b []byte) string {
	return strconv.Quote(string(b))
}

func unquoteString(s string) ([]byte, error) {
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return nil, fmt.Errorf("relay: invalid quoted string %q: %w", s, err)
	}
	return []byte(unquoted), nil
}

// ParseMachine is the inverse of EmitMachine, given the dtype the value is
// known to be (the machine form carries no dtype field of its own — the
// caller already knows it from the tag it opened).
func ParseMachine(dtype tagtype.DType, line string) (tagtype.Value, error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) != 3 {
		return tagtype.Value{}, fmt.Errorf("relay: malformed machine line %q", line)
	}
	quality, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return tagtype.Value{}, fmt.Errorf("relay: bad quality field: %w", err)
	}
	ts, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return tagtype.Value{}, fmt.Errorf("relay: bad timestamp field: %w", err)
	}
	return parseValueField(dtype, ts, tagtype.Quality(quality), fields[2])
}

// ParseHuman is the inverse of EmitHuman: the dtype and quality are read
// back out of their named forms in the line itself.
func ParseHuman(line string) (tagtype.Value, error) {
	fields := strings.SplitN(line, " ", 5)
	if len(fields) != 5 {
		return tagtype.Value{}, fmt.Errorf("relay: malformed human line %q", line)
	}
	dtype, ok := tagtype.ParseDType(fields[0])
	if !ok {
		return tagtype.Value{}, fmt.Errorf("relay: unknown dtype %q", fields[0])
	}
	ts, err := time.Parse(humanTimeLayout, fields[1]+" "+fields[2])
	if err != nil {
		return tagtype.Value{}, fmt.Errorf("relay: bad timestamp %q %q: %w", fields[1], fields[2], err)
	}
	quality, err := parseQuality(fields[3])
	if err != nil {
		return tagtype.Value{}, err
	}
	return parseValueField(dtype, uint64(ts.UnixMilli()), quality, fields[4])
}

func parseValueField(dtype tagtype.DType, ts uint64, q tagtype.Quality, field string) (tagtype.Value, error) {
	switch dtype {
	case tagtype.Int8:
		n, err := strconv.ParseInt(field, 10, 8)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt8(int8(n), ts, q), nil
	case tagtype.UInt8:
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt8(uint8(n), ts, q), nil
	case tagtype.Int16:
		n, err := strconv.ParseInt(field, 10, 16)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt16(int16(n), ts, q), nil
	case tagtype.UInt16:
		n, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt16(uint16(n), ts, q), nil
	case tagtype.Int32:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt32(int32(n), ts, q), nil
	case tagtype.UInt32:
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt32(uint32(n), ts, q), nil
	case tagtype.Int64:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt64(n, ts, q), nil
	case tagtype.UInt64:
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt64(n, ts, q), nil
	case tagtype.Real32:
		n, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewReal32(float32(n), ts, q), nil
	case tagtype.Real64:
		n, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewReal64(n, ts, q), nil
	case tagtype.Timestamp:
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewTimestampValue(n, ts, q), nil
	case tagtype.String:
		raw, err := unquoteString(field)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewString(raw, ts, q)
	default:
		return tagtype.Value{}, fmt.Errorf("relay: unsupported dtype %s", dtype)
	}
}
