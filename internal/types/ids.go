// internal/types/ids.go
package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

type SessionID string
type MessageID string
type UserID string
type CookieID string

// QueryIDLength is the number of hex characters in a client-generated
// query message id.
const QueryIDLength = 24

// TemporaryPrefix marks session ids that exist only on the client.
const TemporaryPrefix = "temp-"

// NewHexID returns a random hex string of exactly length characters. It reads
// from crypto/rand and falls back to math/rand when the system source fails.
func NewHexID(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = byte(mrand.Intn(256))
		}
	}
	return hex.EncodeToString(buf)[:length]
}

// NewQueryID returns the id attached to an outgoing query message. The same
// value is used as the id of the local user message.
func NewQueryID() MessageID {
	return MessageID(NewHexID(QueryIDLength))
}

// NewCookieID returns a fresh opaque visitor id in the form
// user_<unix-millis>_<random>.
func NewCookieID() CookieID {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return CookieID(fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), random[:13]))
}

// NewTemporarySessionID returns an id for a session that has not been
// persisted by the backend yet.
func NewTemporarySessionID() SessionID {
	return SessionID(TemporaryPrefix + shortuuid.New())
}

// IsTemporary reports whether the id was minted by NewTemporarySessionID.
func (id SessionID) IsTemporary() bool {
	return strings.HasPrefix(string(id), TemporaryPrefix)
}
