package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/middleware"
	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
	"github.com/noah-isme/noticeboard/pkg/response"
)

// principalFromContext returns the authenticated principal or writes a 401.
func principalFromContext(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Principal{}, false
	}
	return principal, true
}

// bindJSON decodes the body into dest or writes a 400 carrying message.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
