package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/pkg/response"
)

type directoryService interface {
	Users(ctx context.Context, filter models.DirectoryFilter) ([]models.UserRef, models.Pagination, error)
	Groups(ctx context.Context, filter models.DirectoryFilter) ([]models.GroupRef, models.Pagination, error)
}

// DirectoryHandler serves the user and group pickers.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(svc directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: svc}
}

func directoryFilter(c *gin.Context) models.DirectoryFilter {
	return models.DirectoryFilter{Search: c.Query("q"), Page: queryInt(c, "page"), PageSize: queryInt(c, "page_size")}
}

// Users godoc
// @Summary List users
// @Tags Directory
// @Produce json
// @Param q query string false "Search username or email"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *DirectoryHandler) Users(c *gin.Context) {
	items, pagination, err := h.service.Users(c.Request.Context(), directoryFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination, nil)
}

// Groups godoc
// @Summary List groups
// @Tags Directory
// @Produce json
// @Param q query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *DirectoryHandler) Groups(c *gin.Context) {
	items, pagination, err := h.service.Groups(c.Request.Context(), directoryFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, pagination, nil)
}
