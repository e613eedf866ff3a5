// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the backend reports 404 for a user or session.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a request lacks the visitor cookie.
	ErrUnauthorized = errors.New("unauthorized")
)

// Gateway is the backend REST surface consumed by the chat core.
type Gateway interface {
	GetUser(ctx context.Context, cookie CookieID) (*User, error)
	ListSessions(ctx context.Context, cookie CookieID, page, pageSize int) (*SessionsPage, error)
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListMessages(ctx context.Context, id SessionID, page, pageSize int) (*MessagesPage, error)
	RenameSession(ctx context.Context, id SessionID, name string) (*Session, error)
	SetSessionStarred(ctx context.Context, id SessionID, starred bool) (*StarredResult, error)
	DeleteSession(ctx context.Context, id SessionID) (*DeleteSessionResult, error)
	DeleteAllSessions(ctx context.Context, user UserID) (*DeleteAllResult, error)
}
