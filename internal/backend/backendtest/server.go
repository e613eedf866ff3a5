// Package backendtest provides an in-memory chat backend for tests. It
// serves the REST surface and the streaming chat endpoint under /api.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

// Responder produces the assistant chunks for a query, excluding the
// surrounding start and finish chunks which the server adds.
type Responder func(query string) []uistream.Chunk

type sessionRecord struct {
	session  types.Session
	owner    types.CookieID
	messages []types.Message
	seq      int
}

type failure struct {
	method string
	prefix string
	status int
	left   int
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[types.CookieID]types.User
	sessions  map[types.SessionID]*sessionRecord
	failures  []*failure
	calls     map[string]int
	hook      func(*http.Request)
	responder Responder
	seq       int
	now       time.Time
}

// New starts a fake backend. Close it with Server.Close.
func New() *Server {
	s := &Server{
		users:     make(map[types.CookieID]types.User),
		sessions:  make(map[types.SessionID]*sessionRecord),
		calls:     make(map[string]int),
		responder: EchoResponder,
		now:       time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", s.handleGetUser)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /sessions", s.handleDeleteAll)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/messages", s.handleListMessages)
	mux.HandleFunc("PATCH /sessions/{id}/name", s.handleRename)
	mux.HandleFunc("PATCH /sessions/{id}/starred", s.handleStarred)
	mux.HandleFunc("POST /chat/stream", s.handleStream)
	s.Server = httptest.NewServer(s.middleware(http.StripPrefix("/api", mux)))
	return s
}

// APIURL is the base URL to configure clients with.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		s.mu.Lock()
		s.calls[r.Method+" "+path]++
		hook := s.hook
		var fail *failure
		for _, f := range s.failures {
			if f.left > 0 && f.method == r.Method && strings.HasPrefix(path, f.prefix) {
				f.left--
				fail = f
				break
			}
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if fail != nil {
			writeError(w, fail.status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetHook installs fn to run before every request is handled. It may block
// to hold a request in flight.
func (s *Server) SetHook(fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// SetResponder replaces the assistant behavior of the stream endpoint.
func (s *Server) SetResponder(fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
}

// FailNext makes the next n requests matching method and path prefix fail
// with status.
func (s *Server) FailNext(method, pathPrefix string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: pathPrefix, status: status, left: n})
}

// Calls returns how many requests hit "METHOD /path".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// AddUser registers a backend user for cookie.
func (s *Server) AddUser(cookie types.CookieID) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := types.User{
		ID:        types.UserID("usr_" + strings.TrimPrefix(string(cookie), "user_")),
		CookieID:  cookie,
		Category:  "visitor",
		CreatedAt: types.Timestamp{Time: s.tick()},
	}
	s.users[cookie] = u
	return u
}

// AddSession creates a session owned by cookie. Later sessions sort first.
func (s *Server) AddSession(cookie types.CookieID, name string) types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSessionLocked(cookie, name).session
}

// AddMessages appends persisted messages to a session, assigning order.
func (s *Server) AddMessages(id types.SessionID, msgs ...types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		panic(fmt.Sprintf("backendtest: unknown session %s", id))
	}
	for _, m := range msgs {
		m.Order = len(rec.messages)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = types.Timestamp{Time: s.tick()}
		}
		rec.messages = append(rec.messages, m)
		rec.session.LatestTurnNumber = max(rec.session.LatestTurnNumber, m.TurnNumber)
	}
}

// Session returns the stored session.
func (s *Server) Session(id types.SessionID) (types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	return rec.session, true
}

// Messages returns the stored messages of a session in order.
func (s *Server) Messages(id types.SessionID) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return slices.Clone(rec.messages)
}

func (s *Server) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *Server) addSessionLocked(cookie types.CookieID, name string) *sessionRecord {
	s.seq++
	now := s.tick()
	rec := &sessionRecord{
		session: types.Session{
			ID:        types.SessionID(fmt.Sprintf("sess_%03d", s.seq)),
			Name:      name,
			CreatedAt: types.Timestamp{Time: now},
			UpdatedAt: types.Timestamp{Time: now},
		},
		owner: cookie,
		seq:   s.seq,
	}
	s.sessions[rec.session.ID] = rec
	return rec
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	cookie := types.CookieID(r.URL.Query().Get("cookie_id"))
	s.mu.Lock()
	u, ok := s.users[cookie]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	cookie := types.CookieID(r.URL.Query().Get("cookie_id"))
	page, size := pageParams(r)

	s.mu.Lock()
	var owned []*sessionRecord
	for _, rec := range s.sessions {
		if rec.owner == cookie {
			owned = append(owned, rec)
		}
	}
	slices.SortFunc(owned, func(a, b *sessionRecord) int {
		if c := b.session.UpdatedAt.Compare(a.session.UpdatedAt.Time); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	list := make([]types.Session, len(owned))
	for i, rec := range owned {
		list[i] = rec.session
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(list, page, size, false))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.sessions[types.SessionID(r.PathValue("id"))]
	var sess types.Session
	if ok {
		sess = rec.session
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	s.mu.Lock()
	rec, ok := s.sessions[types.SessionID(r.PathValue("id"))]
	var msgs []types.Message
	if ok {
		msgs = slices.Clone(rec.messages)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, paginate(msgs, page, size, true))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.mu.Lock()
	rec, ok := s.sessions[types.SessionID(r.PathValue("id"))]
	var sess types.Session
	if ok {
		rec.session.Name = strings.TrimSpace(body.Name)
		rec.session.UpdatedAt = types.Timestamp{Time: s.tick()}
		sess = rec.session
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStarred(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Starred *bool `json:"starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Starred == nil {
		writeError(w, http.StatusBadRequest, "starred must be a boolean")
		return
	}
	id := types.SessionID(r.PathValue("id"))
	s.mu.Lock()
	rec, ok := s.sessions[id]
	if ok {
		rec.session.Starred = *body.Starred
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, types.StarredResult{SessionUpdated: true, SessionID: id, Starred: *body.Starred})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	s.mu.Lock()
	rec, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, types.DeleteSessionResult{MessagesDeleted: len(rec.messages), SessionDeleted: true})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	userID := types.UserID(r.URL.Query().Get("user_id"))
	var result types.DeleteAllResult
	s.mu.Lock()
	for cookie, u := range s.users {
		if u.ID != userID {
			continue
		}
		for id, rec := range s.sessions {
			if rec.owner == cookie {
				result.SessionsDeleted++
				result.MessagesDeleted += len(rec.messages)
				delete(s.sessions, id)
			}
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, result)
}

func pageParams(r *http.Request) (page, size int) {
	page, size = 1, 50
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && n > 0 {
		size = n
	}
	return page, size
}

// paginate slices items into a page. With fromEnd, page 1 holds the newest
// (last) items, still in ascending order.
func paginate[T any](items []T, page, size int, fromEnd bool) types.Page[T] {
	total := len(items)
	pages := (total + size - 1) / size
	var lo, hi int
	if fromEnd {
		hi = max(total-(page-1)*size, 0)
		lo = max(hi-size, 0)
	} else {
		lo = min((page-1)*size, total)
		hi = min(lo+size, total)
	}
	results := slices.Clone(items[lo:hi])
	if results == nil {
		results = []T{}
	}
	return types.Page[T]{
		Count:       len(results),
		TotalCount:  total,
		Page:        page,
		PageSize:    size,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
		Results:     results,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
