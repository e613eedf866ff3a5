package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/foliochat/internal/backend/backendtest"
	"github.com/user/foliochat/internal/types"
)

const cookie = types.CookieID("user_1700000000000_abcdef0123456")

func setup(t *testing.T) (*backendtest.Server, *Client) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	return srv, New(&Config{BaseURL: srv.APIURL() + "/"})
}

func TestGetUser(t *testing.T) {
	srv, client := setup(t)
	ctx := context.Background()

	_, err := client.GetUser(ctx, cookie)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	want := srv.AddUser(cookie)
	got, err := client.GetUser(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, cookie, got.CookieID)
}

func TestListSessionsPaginates(t *testing.T) {
	srv, client := setup(t)
	for _, name := range []string{"first", "second", "third"} {
		srv.AddSession(cookie, name)
	}
	srv.AddSession("someone-else", "hidden")

	page, err := client.ListSessions(context.Background(), cookie, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "third", page.Results[0].Name)

	page, err = client.ListSessions(context.Background(), cookie, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "first", page.Results[0].Name)
	assert.True(t, page.HasPrevious)
}

func TestListMessagesNewestPageFirst(t *testing.T) {
	srv, client := setup(t)
	sess := srv.AddSession(cookie, "history")
	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		srv.AddMessages(sess.ID, types.Message{ID: types.MessageID(id), Role: types.RoleHuman, Content: id})
	}

	page, err := client.ListMessages(context.Background(), sess.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, types.MessageID("m3"), page.Results[0].ID)
	assert.Equal(t, types.MessageID("m4"), page.Results[1].ID)

	page, err = client.ListMessages(context.Background(), sess.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, types.MessageID("m1"), page.Results[0].ID)
	assert.False(t, page.HasNext)
}

func TestSessionMutations(t *testing.T) {
	srv, client := setup(t)
	ctx := context.Background()
	sess := srv.AddSession(cookie, "Foo")

	renamed, err := client.RenameSession(ctx, sess.ID, "Bar")
	require.NoError(t, err)
	assert.Equal(t, "Bar", renamed.Name)

	starred, err := client.SetSessionStarred(ctx, sess.ID, true)
	require.NoError(t, err)
	assert.True(t, starred.SessionUpdated)
	assert.True(t, starred.Starred)
	stored, _ := srv.Session(sess.ID)
	assert.True(t, stored.Starred)

	deleted, err := client.DeleteSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, deleted.SessionDeleted)

	_, err = client.GetSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = client.RenameSession(ctx, sess.ID, "Baz")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDeleteAllSessions(t *testing.T) {
	srv, client := setup(t)
	user := srv.AddUser(cookie)
	srv.AddSession(cookie, "a")
	srv.AddSession(cookie, "b")

	res, err := client.DeleteAllSessions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SessionsDeleted)

	page, err := client.ListSessions(context.Background(), cookie, 1, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestStatusErrors(t *testing.T) {
	srv, client := setup(t)
	srv.FailNext(http.MethodGet, "/sessions", http.StatusBadGateway, 1)
	srv.FailNext(http.MethodPatch, "/sessions", http.StatusUnprocessableEntity, 1)

	_, err := client.ListSessions(context.Background(), cookie, 1, 50)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.True(t, statusErr.Temporary())

	_, err = client.RenameSession(context.Background(), "sess_001", "x")
	require.True(t, errors.As(err, &statusErr))
	assert.False(t, statusErr.Temporary())
}

func TestUnauthorizedAndAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(&Config{BaseURL: server.URL, APIKey: "secret"})
	_, err := client.ListSessions(context.Background(), "", 1, 50)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	assert.Equal(t, server.URL+"/chat/stream", client.StreamURL())
}

func TestNotFoundLogsOneLine(t *testing.T) {
	_, client := setup(t)
	_, err := client.GetSession(context.Background(), "sess_missing")
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "get session sess_missing: not found", err.Error())

	core, logs := observer.New(zapcore.DebugLevel)
	zap.New(core).Warn("fetch failed", zap.Error(err))
	entry := logs.All()[0]
	assert.Equal(t, err.Error(), entry.ContextMap()["error"])
	assert.NotContains(t, entry.ContextMap(), "errorVerbose")
}
