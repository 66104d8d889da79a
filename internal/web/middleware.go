package web

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/session"
)

const (
	contextSessionKey = "webSession"
	csrfField         = "csrf_token"
)

// requireSession loads the session and sends anonymous callers to the login
// page, remembering where they were going.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := h.sessions.Get(c.Request.Context(), c.Request)
		if err != nil {
			h.logger.Warn("failed to load session", zap.Error(err))
		}
		if data == nil {
			target := loginPath
			if c.Request.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Set(contextSessionKey, data)
		c.Next()
	}
}

// verifyCSRF rejects state-changing requests without the session token.
func (h *Handler) verifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		data := currentSession(c)
		if data == nil || !data.ValidCSRF(c.PostForm(csrfField)) {
			c.String(http.StatusForbidden, "CSRF token mismatch")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Data {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	data, _ := value.(*session.Data)
	return data
}
