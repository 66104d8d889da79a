// Package web serves the server-rendered announcement board. Pages are
// html/template files embedded in the binary; login state lives in the
// redis-backed session store.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/markdown"
	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/service"
	"github.com/noah-isme/noticeboard/internal/session"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

const (
	listPath     = "/announcements"
	loginPath    = "/login"
	pickerLimit  = 100
	formTimeSpec = "2006-01-02T15:04"
)

type announcementService interface {
	List(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error)
	Get(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
	GetForEdit(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
	GetForDelete(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
	Create(ctx context.Context, principal models.Principal, req dto.AnnouncementRequest) (*models.Announcement, error)
	Update(ctx context.Context, principal models.Principal, id string, req dto.AnnouncementRequest) (*models.Announcement, error)
	Delete(ctx context.Context, principal models.Principal, id string) error
}

type categoryLister interface {
	List(ctx context.Context) ([]models.Category, error)
}

type directoryLister interface {
	Users(ctx context.Context, filter models.DirectoryFilter) ([]models.UserRef, models.Pagination, error)
	Groups(ctx context.Context, filter models.DirectoryFilter) ([]models.GroupRef, models.Pagination, error)
}

type authenticator interface {
	Authenticate(ctx context.Context, req models.LoginRequest) (*models.User, error)
}

type pageSizePolicy interface {
	DefaultPageSize() int
	ParsePageSize(raw string) (int, bool)
}

// Dependencies collects what the UI needs from the service layer.
type Dependencies struct {
	Announcements announcementService
	Categories    categoryLister
	Directory     directoryLister
	Auth          authenticator
	Capabilities  service.CapabilityChecker
	PageSizes     pageSizePolicy
	Sessions      *session.Store
	Logger        *zap.Logger
}

// Handler renders the UI pages.
type Handler struct {
	announcements announcementService
	categories    categoryLister
	directory     directoryLister
	auth          authenticator
	capabilities  service.CapabilityChecker
	pageSizes     pageSizePolicy
	sessions      *session.Store
	render        *renderer
	logger        *zap.Logger
	now           func() time.Time
}

// New parses the embedded templates and builds the handler.
func New(deps Dependencies) (*Handler, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		announcements: deps.Announcements,
		categories:    deps.Categories,
		directory:     deps.Directory,
		auth:          deps.Auth,
		capabilities:  deps.Capabilities,
		pageSizes:     deps.PageSizes,
		sessions:      deps.Sessions,
		render:        r,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register mounts the UI routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, listPath) })
	r.GET(loginPath, h.LoginPage)
	r.POST(loginPath, h.Login)

	authed := r.Group("", h.requireSession(), h.verifyCSRF())
	authed.POST("/logout", h.Logout)
	authed.GET(listPath, h.List)
	authed.GET(listPath+"/new", h.NewForm)
	authed.POST(listPath+"/new", h.Create)
	authed.GET(listPath+"/:id", h.Detail)
	authed.GET(listPath+"/:id/edit", h.EditForm)
	authed.POST(listPath+"/:id/edit", h.Update)
	authed.GET(listPath+"/:id/delete", h.ConfirmDelete)
	authed.POST(listPath+"/:id/delete", h.Delete)
}

// LoginPage shows the sign-in form.
func (h *Handler) LoginPage(c *gin.Context) {
	data, _ := h.sessions.Get(c.Request.Context(), c.Request)
	if data != nil {
		c.Redirect(http.StatusFound, listPath)
		return
	}
	h.render.render(c, http.StatusOK, "login", &pageData{
		Title: "Sign in",
		Data:  map[string]any{"Next": safeNext(c.Query("next")), "Username": ""},
	})
}

// Login checks credentials and starts a fresh session.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	next := safeNext(c.PostForm("next"))

	var req models.LoginRequest
	_ = c.ShouldBind(&req)
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	user, err := h.auth.Authenticate(ctx, req)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("ui login failed", zap.Error(err))
		}
		h.render.render(c, appErr.Status, "login", &pageData{
			Title: "Sign in",
			Data: map[string]any{
				"Next":     next,
				"Username": req.Username,
				"Error":    appErr.Message,
			},
		})
		return
	}

	if err := h.sessions.Destroy(ctx, c.Writer, c.Request); err != nil {
		h.logger.Warn("failed to drop previous session", zap.Error(err))
	}
	data := &session.Data{UserID: user.ID, Username: user.Username, IsSuperuser: user.IsSuperuser}
	if _, err := h.sessions.Create(ctx, c.Writer, data); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, next)
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context(), c.Writer, c.Request); err != nil {
		h.logger.Warn("failed to destroy session", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, loginPath)
}

// List shows the caller's visible announcements with search, read markers
// and the remembered page size.
func (h *Handler) List(c *gin.Context) {
	data := currentSession(c)
	principal := data.Principal()

	pageSize := h.pageSizes.DefaultPageSize()
	if size, ok := h.pageSizes.ParsePageSize(c.Query("page_size")); ok {
		pageSize = size
		data.PageSize = size
		h.save(c, data)
	} else if data.PageSize > 0 {
		pageSize = data.PageSize
	}

	page, _ := strconv.Atoi(c.Query("page"))
	query := dto.AnnouncementQuery{
		Search:    strings.TrimSpace(c.Query("q")),
		ReadState: string(models.ParseReadState(c.Query("read_status"))),
		Page:      page,
		PageSize:  pageSize,
	}
	items, pagination, err := h.announcements.List(c.Request.Context(), principal, query)
	if err != nil {
		h.fail(c, err)
		return
	}

	view := map[string]any{
		"Items":      items,
		"Pagination": pagination,
		"TotalPages": pagination.TotalPages(),
		"Query":      query.Search,
		"ReadState":  query.ReadState,
		"PageSize":   pageSize,
		"PageSizes":  service.PageSizeChoices,
		"CanCreate":  h.can(c, principal, models.ActionCreate),
		"CanEdit":    h.can(c, principal, models.ActionEdit),
		"CanDelete":  h.can(c, principal, models.ActionDelete),
	}
	if pagination.Page > 1 {
		view["PrevURL"] = listURL(query, pagination.Page-1)
	}
	if pagination.Page < pagination.TotalPages() {
		view["NextURL"] = listURL(query, pagination.Page+1)
	}
	h.page(c, http.StatusOK, "list", "Announcements", view)
}

// Detail renders one announcement and marks it read. Hidden announcements
// send the caller back to the list with an error flash.
func (h *Handler) Detail(c *gin.Context) {
	data := currentSession(c)
	principal := data.Principal()

	announcement, err := h.announcements.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		if errors.Is(err, appErrors.ErrNotVisible) {
			h.redirectWithFlash(c, session.FlashError, "You do not have permission to view this announcement.", listPath)
			return
		}
		h.fail(c, err)
		return
	}
	body, err := markdown.ToHTML(announcement.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "detail", announcement.Title, map[string]any{
		"Announcement": announcement,
		"Body":         body,
		"Published":    announcement.IsPublished(h.now()),
		"CanEdit":      h.can(c, principal, models.ActionEdit),
		"CanDelete":    h.can(c, principal, models.ActionDelete),
	})
}

// NewForm shows an empty announcement form.
func (h *Handler) NewForm(c *gin.Context) {
	principal := currentSession(c).Principal()
	if !h.can(c, principal, models.ActionCreate) {
		h.fail(c, appErrors.Clone(appErrors.ErrForbidden, "you may not publish announcements"))
		return
	}
	h.renderForm(c, http.StatusOK, "Publish announcement", "", announcementForm{EmergencyLevel: string(models.EmergencyLow)}, "")
}

// Create stores a submitted announcement authored by the caller.
func (h *Handler) Create(c *gin.Context) {
	principal := currentSession(c).Principal()
	form, req, err := parseAnnouncementForm(c)
	if err == nil {
		_, err = h.announcements.Create(c.Request.Context(), principal, req)
	}
	if err != nil {
		h.formError(c, "Publish announcement", "", form, err)
		return
	}
	h.redirectWithFlash(c, session.FlashSuccess, "Announcement published.", listPath)
}

// EditForm shows the form prefilled with the stored announcement.
func (h *Handler) EditForm(c *gin.Context) {
	principal := currentSession(c).Principal()
	announcement, err := h.announcements.GetForEdit(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderForm(c, http.StatusOK, "Edit announcement", announcement.ID, formFromAnnouncement(announcement), "")
}

// Update replaces the announcement with the submitted form.
func (h *Handler) Update(c *gin.Context) {
	principal := currentSession(c).Principal()
	id := c.Param("id")
	form, req, err := parseAnnouncementForm(c)
	if err == nil {
		_, err = h.announcements.Update(c.Request.Context(), principal, id, req)
	}
	if err != nil {
		h.formError(c, "Edit announcement", id, form, err)
		return
	}
	h.redirectWithFlash(c, session.FlashSuccess, "Announcement updated.", listPath)
}

// ConfirmDelete asks before removing an announcement.
func (h *Handler) ConfirmDelete(c *gin.Context) {
	principal := currentSession(c).Principal()
	announcement, err := h.announcements.GetForDelete(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, http.StatusOK, "confirm_delete", "Delete announcement", map[string]any{
		"Announcement": announcement,
	})
}

// Delete removes the announcement.
func (h *Handler) Delete(c *gin.Context) {
	principal := currentSession(c).Principal()
	if err := h.announcements.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.redirectWithFlash(c, session.FlashSuccess, "Announcement deleted.", listPath)
}

func (h *Handler) renderForm(c *gin.Context, status int, title, id string, form announcementForm, message string) {
	ctx := c.Request.Context()
	categories, err := h.categories.List(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := models.DirectoryFilter{Page: 1, PageSize: pickerLimit}
	users, _, err := h.directory.Users(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	groups, _, err := h.directory.Groups(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	action := listPath + "/new"
	if id != "" {
		action = listPath + "/" + url.PathEscape(id) + "/edit"
	}
	h.page(c, status, "form", title, map[string]any{
		"Action":     action,
		"Form":       form,
		"Error":      message,
		"Categories": categories,
		"Users":      users,
		"Groups":     groups,
		"Levels":     models.EmergencyLevels,
	})
}

// formError re-renders the form for client errors and fails otherwise.
func (h *Handler) formError(c *gin.Context, title, id string, form announcementForm, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status != http.StatusBadRequest {
		h.fail(c, err)
		return
	}
	message := appErr.Message
	if len(appErr.Fields) > 0 {
		names := make([]string, 0, len(appErr.Fields))
		for name := range appErr.Fields {
			names = append(names, name+" ("+appErr.Fields[name]+")")
		}
		sort.Strings(names)
		message += ": " + strings.Join(names, ", ")
	}
	h.renderForm(c, http.StatusBadRequest, title, id, form, message)
}

// page renders a layout page, consuming queued flashes.
func (h *Handler) page(c *gin.Context, status int, name, title string, view map[string]any) {
	data := currentSession(c)
	flashes := data.PopFlashes()
	if len(flashes) > 0 {
		h.save(c, data)
	}
	h.render.render(c, status, name, &pageData{
		Title:     title,
		Session:   data,
		CSRFToken: data.CSRFToken,
		Flashes:   flashes,
		Data:      view,
	})
}

// fail renders the error page for err.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("ui request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	view := map[string]any{"Status": appErr.Status, "Message": appErr.Message}
	if data := currentSession(c); data != nil {
		h.page(c, appErr.Status, "error", http.StatusText(appErr.Status), view)
		return
	}
	h.render.render(c, appErr.Status, "error", &pageData{Title: http.StatusText(appErr.Status), Data: view})
}

func (h *Handler) redirectWithFlash(c *gin.Context, level, message, location string) {
	data := currentSession(c)
	data.AddFlash(level, message)
	h.save(c, data)
	c.Redirect(http.StatusSeeOther, location)
}

func (h *Handler) save(c *gin.Context, data *session.Data) {
	if err := h.sessions.Update(c.Request.Context(), c.Request, data); err != nil {
		h.logger.Warn("failed to save session", zap.Error(err))
	}
}

// can reports whether principal holds action on announcements. Lookup errors
// hide the control rather than failing the page.
func (h *Handler) can(c *gin.Context, principal models.Principal, action models.Action) bool {
	ok, err := h.capabilities.HasCapability(c.Request.Context(), principal, action, models.ResourceAnnouncement)
	if err != nil {
		h.logger.Warn("capability lookup failed", zap.String("action", string(action)), zap.Error(err))
		return false
	}
	return ok
}

func listURL(query dto.AnnouncementQuery, page int) string {
	values := url.Values{}
	if query.Search != "" {
		values.Set("q", query.Search)
	}
	if query.ReadState != string(models.ReadStateAll) {
		values.Set("read_status", query.ReadState)
	}
	values.Set("page", strconv.Itoa(page))
	return listPath + "?" + values.Encode()
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return listPath
	}
	return next
}
