// Package backend is the HTTP client for the chat backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/user/foliochat/internal/types"
)

// DefaultURL is used when no backend URL is configured.
const DefaultURL = "http://0.0.0.0:8000/api"

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements types.Gateway over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
}

var _ types.Gateway = (*Client)(nil)

// New creates a backend client. A zero Timeout defaults to 30s.
func New(config *Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StreamURL returns the streaming chat endpoint.
func (c *Client) StreamURL() string {
	return c.config.BaseURL + "/chat/stream"
}

// StatusError is a non-2xx backend response other than 401 and 404.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// call is one backend endpoint invocation.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

func userCall(cookie types.CookieID) call {
	return call{op: "get user", method: http.MethodGet, path: "/users", query: url.Values{"cookie_id": {string(cookie)}}}
}

func sessionsCall(cookie types.CookieID, page, pageSize int) call {
	return call{
		op:     "list sessions",
		method: http.MethodGet,
		path:   "/sessions",
		query:  pageQuery(url.Values{"cookie_id": {string(cookie)}}, page, pageSize),
	}
}

func sessionCall(id types.SessionID) call {
	return call{op: "get session " + string(id), method: http.MethodGet, path: sessionPath(id)}
}

func messagesCall(id types.SessionID, page, pageSize int) call {
	return call{
		op:     "list messages of session " + string(id),
		method: http.MethodGet,
		path:   sessionPath(id) + "/messages",
		query:  pageQuery(url.Values{}, page, pageSize),
	}
}

func renameCall(id types.SessionID, name string) call {
	return call{
		op:     "rename session " + string(id),
		method: http.MethodPatch,
		path:   sessionPath(id) + "/name",
		body:   map[string]string{"name": name},
	}
}

func starredCall(id types.SessionID, starred bool) call {
	return call{
		op:     "star session " + string(id),
		method: http.MethodPatch,
		path:   sessionPath(id) + "/starred",
		body:   map[string]bool{"starred": starred},
	}
}

func deleteCall(id types.SessionID) call {
	return call{op: "delete session " + string(id), method: http.MethodDelete, path: sessionPath(id)}
}

func deleteAllCall(user types.UserID) call {
	return call{op: "delete all sessions", method: http.MethodDelete, path: "/sessions", query: url.Values{"user_id": {string(user)}}}
}

// invoke runs cl and decodes the body into out. The operation name is
// added with fmt.Errorf so sentinel failures log as a single line.
func (c *Client) invoke(ctx context.Context, cl call, out any) error {
	if err := c.do(ctx, cl.method, cl.path, cl.query, cl.body, out); err != nil {
		return fmt.Errorf("%s: %w", cl.op, err)
	}
	return nil
}

func (c *Client) GetUser(ctx context.Context, cookie types.CookieID) (*types.User, error) {
	var user types.User
	if err := c.invoke(ctx, userCall(cookie), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListSessions(ctx context.Context, cookie types.CookieID, page, pageSize int) (*types.SessionsPage, error) {
	var out types.SessionsPage
	if err := c.invoke(ctx, sessionsCall(cookie, page, pageSize), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSession(ctx context.Context, id types.SessionID) (*types.Session, error) {
	var sess types.Session
	if err := c.invoke(ctx, sessionCall(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) ListMessages(ctx context.Context, id types.SessionID, page, pageSize int) (*types.MessagesPage, error) {
	var out types.MessagesPage
	if err := c.invoke(ctx, messagesCall(id, page, pageSize), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RenameSession(ctx context.Context, id types.SessionID, name string) (*types.Session, error) {
	var sess types.Session
	if err := c.invoke(ctx, renameCall(id, name), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) SetSessionStarred(ctx context.Context, id types.SessionID, starred bool) (*types.StarredResult, error) {
	var out types.StarredResult
	if err := c.invoke(ctx, starredCall(id, starred), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id types.SessionID) (*types.DeleteSessionResult, error) {
	var out types.DeleteSessionResult
	if err := c.invoke(ctx, deleteCall(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAllSessions(ctx context.Context, user types.UserID) (*types.DeleteAllResult, error) {
	var out types.DeleteAllResult
	if err := c.invoke(ctx, deleteAllCall(user), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(id types.SessionID) string {
	return "/sessions/" + url.PathEscape(string(id))
}

func pageQuery(q url.Values, page, pageSize int) url.Values {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	return q
}

// do sends one JSON request and decodes a 2xx body into out. 404 and 401
// map to the types sentinels.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return types.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "parse response")
	}
	return nil
}
