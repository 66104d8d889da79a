package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/pkg/response"
)

type readStatusService interface {
	readMarkService
	DeleteByID(ctx context.Context, principal models.Principal, id string) error
	List(ctx context.Context, principal models.Principal, page, pageSize int) ([]models.ReadStatus, models.Pagination, error)
	Get(ctx context.Context, principal models.Principal, id string) (*models.ReadStatus, error)
}

// ReadStatusHandler exposes the caller's own read markers.
type ReadStatusHandler struct {
	service readStatusService
	prefs   pageSizeResolver
}

// NewReadStatusHandler constructs the handler.
func NewReadStatusHandler(svc readStatusService, prefs pageSizeResolver) *ReadStatusHandler {
	return &ReadStatusHandler{service: svc, prefs: prefs}
}

// List godoc
// @Summary List my read markers
// @Tags Read status
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /read-status [get]
func (h *ReadStatusHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	size := h.prefs.ResolvePageSize(c.Request.Context(), principal.UserID, c.Query("page_size"))
	items, pagination, err := h.service.List(c.Request.Context(), principal, queryInt(c, "page"), size)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.ReadStatusResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewReadStatusResponse(item))
	}
	response.Page(c, out, pagination, nil)
}

// Get godoc
// @Summary Get one of my read markers
// @Tags Read status
// @Produce json
// @Param id path string true "Read status ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /read-status/{id} [get]
func (h *ReadStatusHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	status, err := h.service.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewReadStatusResponse(*status), nil)
}

// Create godoc
// @Summary Mark an announcement as read
// @Tags Read status
// @Accept json
// @Produce json
// @Param payload body dto.MarkReadRequest true "Announcement to mark"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /read-status [post]
func (h *ReadStatusHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkReadRequest
	if !bindJSON(c, &req, "invalid read status payload") {
		return
	}
	writeMarkRead(c, h.service, principal, req.AnnouncementID)
}

// Delete godoc
// @Summary Delete one of my read markers
// @Tags Read status
// @Param id path string true "Read status ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /read-status/{id} [delete]
func (h *ReadStatusHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteByID(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
