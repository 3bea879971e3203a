package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the wire layout for timestamps: RFC 3339 in UTC with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is an instant with millisecond precision, always held in UTC.
// The zero value means "never".
type Timestamp struct {
	time.Time
}

// NewTimestamp normalises t to UTC and truncates it to milliseconds.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// TimestampFromMillis builds a Timestamp from Unix epoch milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return NewTimestamp(time.UnixMilli(ms))
}

// Millis returns the instant as Unix epoch milliseconds, or 0 for the zero value.
func (t Timestamp) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// String renders the timestamp in TimestampLayout.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON encodes the zero value as null and everything else as an
// RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts null, an RFC 3339 string, or epoch milliseconds.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = ts
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return fmt.Errorf("timestamp: unsupported value %s", b)
		}
		ms = int64(f)
	}
	*t = TimestampFromMillis(ms)
	return nil
}

// ParseTimestamp accepts an RFC 3339 string (with or without fractional
// seconds) or a decimal count of epoch milliseconds.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TimestampFromMillis(ms), nil
	}
	tm, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp: %w", err)
	}
	return NewTimestamp(tm), nil
}
