// internal/types/time.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// zonelessLayouts are accepted for backend timestamps that omit the offset.
// Such values are UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that tolerates the backend's zone-less ISO format.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses RFC 3339 values and zone-less ISO values (as UTC).
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{t}, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("parse timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RelativeTime renders the age of t relative to now, e.g. "5m ago".
// Months are 30 days and years are 12 months. Future values read as "0s ago".
func (t Timestamp) RelativeTime(now time.Time) string {
	sec := int64(now.Sub(t.Time) / time.Second)
	if sec < 0 {
		sec = 0
	}
	if sec < 60 {
		return fmt.Sprintf("%ds ago", sec)
	}
	min := sec / 60
	if min < 60 {
		return fmt.Sprintf("%dm ago", min)
	}
	hour := min / 60
	if hour < 24 {
		return fmt.Sprintf("%dh ago", hour)
	}
	day := hour / 24
	if day < 30 {
		return fmt.Sprintf("%dd ago", day)
	}
	mon := day / 30
	if mon < 12 {
		return fmt.Sprintf("%dmo ago", mon)
	}
	return fmt.Sprintf("%dy ago", mon/12)
}
