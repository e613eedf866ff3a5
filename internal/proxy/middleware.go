package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/user/foliochat/internal/types"
)

const (
	cookieKey  = "foliochat.cookie"
	newUserKey = "foliochat.new_user"
)

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

// visitorCookie issues the visitor cookie when it is missing and reports
// through the x-is-new-user header whether it did.
func (s *Server) visitorCookie(c *gin.Context) {
	existing, err := c.Cookie(s.opts.CookieName)
	if err == nil && existing != "" {
		c.Set(cookieKey, types.CookieID(existing))
		c.Set(newUserKey, false)
		c.Header(NewUserHeader, "false")
		c.Next()
		return
	}

	id := types.NewCookieID()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    string(id),
		Path:     "/",
		MaxAge:   int(s.opts.CookieMaxAge / time.Second),
		Secure:   s.opts.SecureCookie,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(cookieKey, id)
	c.Set(newUserKey, true)
	c.Header(NewUserHeader, "true")
	s.logger.Debug("issued visitor cookie", zap.String("cookie_id", string(id)))
	c.Next()
}

// pageParams reads page and page_size, defaulting to 1 and the configured
// page size.
func (s *Server) pageParams(c *gin.Context) (page, size int) {
	page, size = 1, s.opts.PageSize
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		size = n
	}
	return page, size
}
