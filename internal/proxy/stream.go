package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/user/foliochat/pkg/uistream"
)

// handleStream forwards a chat turn to the streaming endpoint with the
// visitor cookie filled in, and relays the event stream as it arrives.
func (s *Server) handleStream(c *gin.Context) {
	cookie, ok := s.requireCookie(c)
	if !ok {
		return
	}
	var req uistream.Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.QueryMessage.Query) == "" {
		abortError(c, http.StatusBadRequest, "query_message.query is required")
		return
	}
	req.CookieID = string(cookie)
	body, err := json.Marshal(req)
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid chat request")
		return
	}

	resp, err := s.stream.Open(c.Request.Context(), bytes.NewReader(body), nil)
	if err != nil {
		var status *uistream.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			abortError(c, http.StatusNotFound, "Session not found")
			return
		}
		s.gatewayFailed(c, "start chat stream", err)
		return
	}
	defer resp.Body.Close()

	uistream.SetHeaders(c.Writer.Header())
	c.Status(resp.StatusCode)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			if c.Request.Context().Err() == nil {
				s.logger.Warn("chat stream interrupted", zap.Error(err))
			}
			return
		}
	}
}
