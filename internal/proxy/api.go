package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/user/foliochat/internal/types"
)

var errMissingUserID = errors.New("user has no id")

// requireCookie aborts with 401 when the visitor cookie is missing.
func (s *Server) requireCookie(c *gin.Context) (types.CookieID, bool) {
	id, ok := s.cookie(c)
	if !ok {
		abortError(c, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

// gatewayFailed logs err and answers with the generic 500 body.
func (s *Server) gatewayFailed(c *gin.Context, op string, err error) {
	s.logger.Error("backend call failed", zap.String("op", op), zap.Error(err))
	abortError(c, http.StatusInternalServerError, "Failed to "+op)
}

func (s *Server) handleUser(c *gin.Context) {
	cookie, ok := s.requireCookie(c)
	if !ok {
		return
	}
	user, err := s.gateway.GetUser(c.Request.Context(), cookie)
	if errors.Is(err, types.ErrNotFound) {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.gatewayFailed(c, "fetch user", err)
		return
	}
	relay(c, user)
}

func (s *Server) handleListSessions(c *gin.Context) {
	cookie, ok := s.requireCookie(c)
	if !ok {
		return
	}
	page, size := s.pageParams(c)
	res, err := s.gateway.ListSessions(c.Request.Context(), cookie, page, size)
	if err != nil {
		s.gatewayFailed(c, "fetch sessions", err)
		return
	}
	relay(c, res)
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := types.SessionID(c.Param("sessionId"))
	sess, err := s.gateway.GetSession(c.Request.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		abortError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.gatewayFailed(c, "fetch session", err)
		return
	}
	relay(c, sess)
}

func (s *Server) handleListMessages(c *gin.Context) {
	if _, ok := s.requireCookie(c); !ok {
		return
	}
	id := types.SessionID(c.Param("sessionId"))
	page, size := s.pageParams(c)
	res, err := s.gateway.ListMessages(c.Request.Context(), id, page, size)
	if err != nil {
		s.gatewayFailed(c, "fetch messages", err)
		return
	}
	relay(c, res)
}

func (s *Server) handleRename(c *gin.Context) {
	var body struct {
		Name any `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid name provided")
		return
	}
	name, ok := body.Name.(string)
	if !ok || strings.TrimSpace(name) == "" {
		abortError(c, http.StatusBadRequest, "Invalid name provided")
		return
	}

	sess, err := s.gateway.RenameSession(c.Request.Context(), types.SessionID(c.Param("sessionId")), name)
	if err != nil {
		s.gatewayFailed(c, "rename session", err)
		return
	}
	relay(c, sess)
}

func (s *Server) handleStarred(c *gin.Context) {
	var body struct {
		Starred any `json:"starred"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid starred value provided")
		return
	}
	starred, ok := body.Starred.(bool)
	if !ok {
		abortError(c, http.StatusBadRequest, "Invalid starred value provided")
		return
	}

	res, err := s.gateway.SetSessionStarred(c.Request.Context(), types.SessionID(c.Param("sessionId")), starred)
	if err != nil {
		s.gatewayFailed(c, "toggle star session", err)
		return
	}
	relay(c, res)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	res, err := s.gateway.DeleteSession(c.Request.Context(), types.SessionID(c.Param("sessionId")))
	if err != nil {
		s.gatewayFailed(c, "delete session", err)
		return
	}
	relay(c, res)
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	cookie, ok := s.requireCookie(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	raw, err := s.gateway.GetUser(ctx, cookie)
	if errors.Is(err, types.ErrNotFound) {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.gatewayFailed(c, "fetch user", err)
		return
	}
	var user types.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.gatewayFailed(c, "fetch user", fmt.Errorf("decode user: %w", err))
		return
	}
	if user.ID == "" {
		s.gatewayFailed(c, "fetch user", errMissingUserID)
		return
	}
	res, err := s.gateway.DeleteAllSessions(ctx, user.ID)
	if err != nil {
		s.gatewayFailed(c, "delete sessions", err)
		return
	}
	relay(c, res)
}
