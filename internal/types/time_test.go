// internal/types/time_test.go
package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampZoneless(t *testing.T) {
	ts, err := ParseTimestamp("2025-03-04T05:06:07.123456")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 5, ts.Hour())

	ts, err = ParseTimestamp("2025-03-04T05:06:07+02:00")
	require.NoError(t, err)
	assert.Equal(t, 3, ts.UTC().Hour())

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{-time.Minute, "0s ago"},
		{42 * time.Second, "42s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{6 * 24 * time.Hour, "6d ago"},
		{65 * 24 * time.Hour, "2mo ago"},
		{800 * 24 * time.Hour, "2y ago"},
	}
	for _, tt := range tests {
		ts := Timestamp{now.Add(-tt.ago)}
		assert.Equal(t, tt.want, ts.RelativeTime(now), "ago=%s", tt.ago)
	}
}
