// internal/state/actions.go
package state

import "github.com/user/foliochat/internal/types"

// Action is a state transition request. The set is closed; see Reduce.
type Action interface {
	action()
}

// Hydrate seeds the cache from a bootstrap fetch. Nil fields are left alone.
type Hydrate struct {
	User     *types.User
	Sessions *types.SessionsPage
}

type SessionsRequested struct{}

// SessionsLoaded applies a sessions page: page 1 replaces, later pages append.
type SessionsLoaded struct {
	Page *types.SessionsPage
}

type SessionsFailed struct {
	Err string
}

// SetCurrentSession switches the current session and always resets the
// message list. A nil Session leaves no session selected.
type SetCurrentSession struct {
	Session *types.Session
}

type MessagesRequested struct {
	Epoch uint64
}

// MessagesHydrated replaces the message list with a page-1 result.
type MessagesHydrated struct {
	Epoch     uint64
	SessionID types.SessionID
	Page      *types.MessagesPage
}

// MessagesPageAppended prepends an older page ahead of the current list.
type MessagesPageAppended struct {
	Epoch     uint64
	SessionID types.SessionID
	Page      *types.MessagesPage
}

type MessagesFailed struct {
	Epoch uint64
	Err   string
}

type ResetMessages struct{}

// StartTemporarySession makes a client-only session current, reusing the
// existing one if the current session is already temporary.
type StartTemporarySession struct {
	ID types.SessionID
}

// PromoteTemporarySession swaps a temporary current session for the
// persisted session the backend created for it.
type PromoteTemporarySession struct {
	TemporaryID types.SessionID
	Session     types.Session
}

type UpdateSessionName struct {
	ID   types.SessionID
	Name string
}

type UpdateSessionStarred struct {
	ID      types.SessionID
	Starred bool
}

type RemoveSession struct {
	ID types.SessionID
}

// RestoreSession puts a removed session back at Index.
type RestoreSession struct {
	Session types.Session
	Index   int
}

type ClearAllSessions struct{}

// RestoreSessions undoes ClearAllSessions from a snapshot taken before it.
type RestoreSessions struct {
	Snapshot State
}

// CommitTurn appends a completed streamed turn to the current session.
type CommitTurn struct {
	SessionID types.SessionID
	Messages  []types.Message
}

type SetMessageFeedback struct {
	ID       types.MessageID
	Feedback types.Feedback
}

type SetViewport struct {
	Width int
}

type SetNavCollapsed struct {
	Collapsed bool
}

// MarkSessionNotFound flags a deep-linked session as missing. It does not
// touch the current session.
type MarkSessionNotFound struct{}

// Reset returns to the initial state, keeping viewport state.
type Reset struct{}

func (Hydrate) action()                 {}
func (SessionsRequested) action()       {}
func (SessionsLoaded) action()          {}
func (SessionsFailed) action()          {}
func (SetCurrentSession) action()       {}
func (MessagesRequested) action()       {}
func (MessagesHydrated) action()        {}
func (MessagesPageAppended) action()    {}
func (MessagesFailed) action()          {}
func (ResetMessages) action()           {}
func (StartTemporarySession) action()   {}
func (PromoteTemporarySession) action() {}
func (UpdateSessionName) action()       {}
func (UpdateSessionStarred) action()    {}
func (RemoveSession) action()           {}
func (RestoreSession) action()          {}
func (ClearAllSessions) action()        {}
func (RestoreSessions) action()         {}
func (CommitTurn) action()              {}
func (SetMessageFeedback) action()      {}
func (SetViewport) action()             {}
func (SetNavCollapsed) action()         {}
func (MarkSessionNotFound) action()     {}
func (Reset) action()                   {}
