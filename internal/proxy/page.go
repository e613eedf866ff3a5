package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/foliochat/internal/types"
)

// Bootstrap is the data a chat page starts from. Backend bodies are
// embedded as received; fields whose fetch failed are null.
type Bootstrap struct {
	User            json.RawMessage `json:"user"`
	Sessions        json.RawMessage `json:"sessions"`
	CurrentSession  json.RawMessage `json:"current_session"`
	Messages        json.RawMessage `json:"messages"`
	IsNewUser       bool            `json:"is_new_user"`
	SessionNotFound bool            `json:"session_not_found"`
}

// handleChatPage serves the bootstrap payload of /chat and
// /chat/:sessionId. New visitors get an empty payload without any backend
// call.
func (s *Server) handleChatPage(c *gin.Context) {
	cookie, _ := s.cookie(c)
	out := Bootstrap{IsNewUser: c.GetBool(newUserKey)}
	if out.IsNewUser {
		c.JSON(http.StatusOK, out)
		return
	}

	sessionID := types.SessionID(c.Param("sessionId"))
	ctx := c.Request.Context()
	var g errgroup.Group
	g.Go(func() error {
		user, err := s.gateway.GetUser(ctx, cookie)
		s.settle("user", sessionID, err)
		out.User = user
		return nil
	})
	g.Go(func() error {
		page, err := s.gateway.ListSessions(ctx, cookie, 1, s.opts.PageSize)
		s.settle("sessions", sessionID, err)
		out.Sessions = page
		return nil
	})
	if sessionID != "" {
		g.Go(func() error {
			sess, err := s.gateway.GetSession(ctx, sessionID)
			s.settle("session", sessionID, err)
			out.CurrentSession = sess
			out.SessionNotFound = errors.Is(err, types.ErrNotFound)
			return nil
		})
		g.Go(func() error {
			page, err := s.gateway.ListMessages(ctx, sessionID, 1, s.opts.PageSize)
			s.settle("messages", sessionID, err)
			out.Messages = page
			return nil
		})
	}
	_ = g.Wait()

	if out.SessionNotFound {
		out.Messages = nil
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) settle(what string, id types.SessionID, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{zap.String("fetch", what), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("session_id", string(id)))
	}
	s.logger.Warn("bootstrap fetch failed", fields...)
}
