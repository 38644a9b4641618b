package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is far in the future, 1e11 milliseconds is early 1973.
const epochMillisThreshold = 100_000_000_000

// Timestamp is the point in time a tool call completed. It decodes from an
// RFC 3339 string or an integer epoch (seconds or milliseconds) and always
// encodes as RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalised to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// TimestampFromMillis builds a Timestamp from epoch milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return NewTimestamp(time.UnixMilli(ms))
}

// ParseTimestamp accepts RFC 3339 (with or without fractional seconds) or an
// integer epoch value.
func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, fmt.Errorf("%w: empty timestamp", ErrInvalidFilter)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return fromEpoch(n), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: timestamp %q is neither RFC 3339 nor epoch", ErrInvalidFilter, raw)
	}
	return NewTimestamp(t), nil
}

func fromEpoch(n int64) Timestamp {
	if n >= epochMillisThreshold || n <= -epochMillisThreshold {
		return TimestampFromMillis(n)
	}
	return NewTimestamp(time.Unix(n, 0))
}

// Millis returns epoch milliseconds, or 0 for the zero Timestamp.
func (t Timestamp) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// String renders the wire form.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	*t = fromEpoch(n)
	return nil
}
