// internal/state/query.go
package state

import (
	"strings"

	"github.com/user/foliochat/internal/types"
)

// Session looks up a session in the collection, falling back to the current
// session (which may be temporary).
func (s State) Session(id types.SessionID) (types.Session, bool) {
	if i := indexOfSession(s.Sessions, id); i >= 0 {
		return s.Sessions[i], true
	}
	if s.Current != nil && s.Current.ID == id {
		return *s.Current, true
	}
	return types.Session{}, false
}

// SessionIndex returns the position of id in the collection, or -1.
func (s State) SessionIndex(id types.SessionID) int {
	return indexOfSession(s.Sessions, id)
}

// CurrentID returns the current session id or "" when none is selected.
func (s State) CurrentID() types.SessionID {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}

// IsTemporary reports whether the current session is client-only.
func (s State) IsTemporary() bool {
	return s.Current != nil && s.Current.Temporary
}

// Starred returns the starred sessions in collection order.
func (s State) Starred() []types.Session {
	var out []types.Session
	for _, sess := range s.Sessions {
		if sess.Starred {
			out = append(out, sess)
		}
	}
	return out
}

// Search filters sessions whose name contains query, ignoring case. An empty
// query returns every session.
func (s State) Search(query string) []types.Session {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Sessions
	}
	var out []types.Session
	for _, sess := range s.Sessions {
		if strings.Contains(strings.ToLower(sess.Name), q) {
			out = append(out, sess)
		}
	}
	return out
}

// Message looks up a message of the current session by id.
func (s State) Message(id types.MessageID) (types.Message, bool) {
	if i := indexOfMessage(s.Messages, id); i >= 0 {
		return s.Messages[i], true
	}
	return types.Message{}, false
}
