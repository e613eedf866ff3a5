// internal/types/ids_test.go
package types

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHexID(t *testing.T) {
	hexRe := regexp.MustCompile(`^[0-9a-f]+$`)
	for _, n := range []int{1, 7, 24, 32} {
		id := NewHexID(n)
		assert.Len(t, id, n)
		assert.Regexp(t, hexRe, id)
	}
	assert.Empty(t, NewHexID(0))
}

func TestNewQueryIDUnique(t *testing.T) {
	seen := make(map[MessageID]bool)
	for i := 0; i < 1000; i++ {
		id := NewQueryID()
		require.Len(t, string(id), QueryIDLength)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewCookieIDFormat(t *testing.T) {
	id := NewCookieID()
	assert.Regexp(t, `^user_\d{13}_[0-9a-f]{13}$`, string(id))
}

func TestTemporarySessionID(t *testing.T) {
	id := NewTemporarySessionID()
	assert.True(t, id.IsTemporary())
	assert.NotEqual(t, id, NewTemporarySessionID())
	assert.False(t, SessionID("6650f0c2e1").IsTemporary())
}
