// Package proxy is the front door of the chat UI. It assigns visitor
// cookies, serves the bootstrap payload of the chat pages and forwards the
// /api/chat routes to the backend.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/user/foliochat/internal/state"
	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

// NewUserHeader tells the page whether the visitor cookie was just issued.
const NewUserHeader = "x-is-new-user"

// Upstream is the backend as the proxy sees it. Successful bodies are
// returned undecoded and relayed unchanged; 404 and 401 map to the types
// sentinels.
type Upstream interface {
	GetUser(ctx context.Context, cookie types.CookieID) (json.RawMessage, error)
	ListSessions(ctx context.Context, cookie types.CookieID, page, pageSize int) (json.RawMessage, error)
	GetSession(ctx context.Context, id types.SessionID) (json.RawMessage, error)
	ListMessages(ctx context.Context, id types.SessionID, page, pageSize int) (json.RawMessage, error)
	RenameSession(ctx context.Context, id types.SessionID, name string) (json.RawMessage, error)
	SetSessionStarred(ctx context.Context, id types.SessionID, starred bool) (json.RawMessage, error)
	DeleteSession(ctx context.Context, id types.SessionID) (json.RawMessage, error)
	DeleteAllSessions(ctx context.Context, user types.UserID) (json.RawMessage, error)
}

// Options configures a Server.
type Options struct {
	CookieName   string
	CookieMaxAge time.Duration
	SecureCookie bool
	PageSize     int
	Logger       *zap.Logger
}

// Server routes front-door requests.
type Server struct {
	gateway Upstream
	stream  *uistream.Client
	opts    Options
	logger  *zap.Logger
	engine  *gin.Engine
}

// New builds the gin engine with all routes registered.
func New(gateway Upstream, stream *uistream.Client, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "user_cookie"
	}
	if opts.CookieMaxAge <= 0 {
		opts.CookieMaxAge = 365 * 24 * time.Hour
	}
	if opts.PageSize <= 0 {
		opts.PageSize = state.DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		gateway: gateway,
		stream:  stream,
		opts:    opts,
		logger:  logger,
		engine:  gin.New(),
	}
	s.engine.Use(requestLogger(logger), gin.Recovery())

	s.engine.GET("/health", s.handleHealth)

	pages := s.engine.Group("/chat", s.visitorCookie)
	pages.GET("", s.handleChatPage)
	pages.GET("/:sessionId", s.handleChatPage)

	api := s.engine.Group("/api/chat")
	api.GET("/user", s.handleUser)
	api.GET("/sessions", s.handleListSessions)
	api.DELETE("/sessions", s.handleDeleteAll)
	api.GET("/sessions/:sessionId", s.handleGetSession)
	api.DELETE("/sessions/:sessionId", s.handleDeleteSession)
	api.GET("/sessions/:sessionId/messages", s.handleListMessages)
	api.PATCH("/sessions/:sessionId/rename", s.handleRename)
	api.PATCH("/sessions/:sessionId/starred", s.handleStarred)
	api.POST("/stream", s.handleStream)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// cookie returns the visitor cookie of the request, if any.
func (s *Server) cookie(c *gin.Context) (types.CookieID, bool) {
	if v, ok := c.Get(cookieKey); ok {
		return v.(types.CookieID), true
	}
	v, err := c.Cookie(s.opts.CookieName)
	if err != nil || v == "" {
		return "", false
	}
	return types.CookieID(v), true
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// relay writes a backend body as received.
func relay(c *gin.Context, body json.RawMessage) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
