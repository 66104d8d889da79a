package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/service"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
	"github.com/noah-isme/noticeboard/pkg/export"
	"github.com/noah-isme/noticeboard/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error)
	Manage(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error)
	Get(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
	Create(ctx context.Context, principal models.Principal, req dto.AnnouncementRequest) (*models.Announcement, error)
	Update(ctx context.Context, principal models.Principal, id string, req dto.AnnouncementRequest) (*models.Announcement, error)
	Patch(ctx context.Context, principal models.Principal, id string, req dto.AnnouncementPatch) (*models.Announcement, error)
	Delete(ctx context.Context, principal models.Principal, id string) error
}

type readMarkService interface {
	MarkRead(ctx context.Context, principal models.Principal, announcementID string) (*models.ReadStatus, bool, error)
	MarkUnread(ctx context.Context, principal models.Principal, announcementID string) error
}

type pageSizeResolver interface {
	ResolvePageSize(ctx context.Context, userID, raw string) int
}

type receiptExporter interface {
	ReadReceipts(ctx context.Context, principal models.Principal, announcementID string, format export.Format) (*service.ExportResult, error)
}

// AnnouncementHandler exposes the announcement endpoints.
type AnnouncementHandler struct {
	announcements announcementService
	reads         readMarkService
	prefs         pageSizeResolver
	exports       receiptExporter
	now           func() time.Time
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(announcements announcementService, reads readMarkService, prefs pageSizeResolver, exports receiptExporter) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcements: announcements,
		reads:         reads,
		prefs:         prefs,
		exports:       exports,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// List godoc
// @Summary List announcements addressed to the caller
// @Description Published announcements the caller is a recipient of, most urgent first
// @Tags Announcements
// @Produce json
// @Param q query string false "Case-insensitive search on title and content"
// @Param read_status query string false "all, read or unread"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (remembered per user)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	h.list(c, h.announcements.List)
}

// MyAnnouncements godoc
// @Summary List the caller's announcements by read state
// @Tags Announcements
// @Produce json
// @Param read_status query string false "read or unread"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements/my_announcements [get]
func (h *AnnouncementHandler) MyAnnouncements(c *gin.Context) {
	h.list(c, h.announcements.List)
}

// Manage godoc
// @Summary List announcements for authoring and moderation
// @Description scope=all is limited to managers and ignores publish time and targeting; any other scope lists the caller's own announcements
// @Tags Announcements
// @Produce json
// @Param scope query string false "mine or all"
// @Param q query string false "Search"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements/manage [get]
func (h *AnnouncementHandler) Manage(c *gin.Context) {
	h.list(c, h.announcements.Manage)
}

type listFunc func(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error)

func (h *AnnouncementHandler) list(c *gin.Context, fetch listFunc) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var query dto.AnnouncementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	query.PageSize = h.prefs.ResolvePageSize(c.Request.Context(), principal.UserID, c.Query("page_size"))

	items, pagination, err := fetch(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"q": query.Search}
	if state := models.ParseReadState(query.ReadState); state != models.ReadStateAll {
		meta["read_status"] = state
	}
	response.Page(c, dto.NewAnnouncementResponses(items, h.now()), pagination, meta)
}

// Get godoc
// @Summary Get an announcement
// @Description Returns the announcement and marks it read for the caller
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	announcement, err := h.announcements.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAnnouncementResponse(*announcement, h.now()), nil)
}

// Create godoc
// @Summary Create an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body dto.AnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}
	announcement, err := h.announcements.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAnnouncementResponse(*announcement, h.now()))
}

// Update godoc
// @Summary Replace an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.AnnouncementRequest true "Announcement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}
	announcement, err := h.announcements.Update(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAnnouncementResponse(*announcement, h.now()), nil)
}

// Patch godoc
// @Summary Partially update an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body dto.AnnouncementPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements/{id} [patch]
func (h *AnnouncementHandler) Patch(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.AnnouncementPatch
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}
	announcement, err := h.announcements.Patch(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAnnouncementResponse(*announcement, h.now()), nil)
}

// Delete godoc
// @Summary Delete an announcement
// @Tags Announcements
// @Param id path string true "Announcement ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.announcements.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkRead godoc
// @Summary Mark an announcement as read
// @Tags Read status
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements/{id}/read [post]
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	writeMarkRead(c, h.reads, principal, c.Param("id"))
}

// MarkUnread godoc
// @Summary Mark an announcement as unread
// @Tags Read status
// @Param id path string true "Announcement ID"
// @Success 204
// @Router /announcements/{id}/read [delete]
func (h *AnnouncementHandler) MarkUnread(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.reads.MarkUnread(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Receipts godoc
// @Summary Export who read an announcement
// @Tags Announcements
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Announcement ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements/{id}/receipts [get]
func (h *AnnouncementHandler) Receipts(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be json, csv or pdf"))
		return
	}
	result, err := h.exports.ReadReceipts(c.Request.Context(), principal, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == export.FormatJSON {
		response.JSON(c, http.StatusOK, result.Receipts, nil, map[string]interface{}{"count": len(result.Receipts)})
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

func writeMarkRead(c *gin.Context, reads readMarkService, principal models.Principal, announcementID string) {
	status, created, err := reads.MarkRead(c.Request.Context(), principal, announcementID)
	if err != nil {
		response.Error(c, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	response.JSON(c, code, dto.MarkReadResponse{
		ReadStatusResponse: dto.NewReadStatusResponse(*status),
		WasAlreadyRead:     !created,
	}, nil)
}
