package backend

import (
	"context"
	"encoding/json"

	"github.com/user/foliochat/internal/types"
)

// Raw exposes the backend endpoints without decoding 2xx bodies, for
// callers that relay responses unchanged. Errors are mapped as in Client.
type Raw struct {
	client *Client
}

// Raw returns the undecoded view of c.
func (c *Client) Raw() *Raw {
	return &Raw{client: c}
}

func (r *Raw) forward(ctx context.Context, cl call) (json.RawMessage, error) {
	var body json.RawMessage
	if err := r.client.invoke(ctx, cl, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	return body, nil
}

func (r *Raw) GetUser(ctx context.Context, cookie types.CookieID) (json.RawMessage, error) {
	return r.forward(ctx, userCall(cookie))
}

func (r *Raw) ListSessions(ctx context.Context, cookie types.CookieID, page, pageSize int) (json.RawMessage, error) {
	return r.forward(ctx, sessionsCall(cookie, page, pageSize))
}

func (r *Raw) GetSession(ctx context.Context, id types.SessionID) (json.RawMessage, error) {
	return r.forward(ctx, sessionCall(id))
}

func (r *Raw) ListMessages(ctx context.Context, id types.SessionID, page, pageSize int) (json.RawMessage, error) {
	return r.forward(ctx, messagesCall(id, page, pageSize))
}

func (r *Raw) RenameSession(ctx context.Context, id types.SessionID, name string) (json.RawMessage, error) {
	return r.forward(ctx, renameCall(id, name))
}

func (r *Raw) SetSessionStarred(ctx context.Context, id types.SessionID, starred bool) (json.RawMessage, error) {
	return r.forward(ctx, starredCall(id, starred))
}

func (r *Raw) DeleteSession(ctx context.Context, id types.SessionID) (json.RawMessage, error) {
	return r.forward(ctx, deleteCall(id))
}

func (r *Raw) DeleteAllSessions(ctx context.Context, user types.UserID) (json.RawMessage, error) {
	return r.forward(ctx, deleteAllCall(user))
}
