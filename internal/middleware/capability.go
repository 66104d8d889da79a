package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/service"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
	"github.com/noah-isme/noticeboard/pkg/response"
)

// RequireCapability lets the request through only when the authenticated
// principal holds action on resource. Superusers always pass.
func RequireCapability(checker service.CapabilityChecker, action models.Action, resource models.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := Principal(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.HasCapability(c.Request.Context(), principal, action, resource)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability "+string(resource)+":"+string(action)))
			c.Abort()
			return
		}
		c.Next()
	}
}
