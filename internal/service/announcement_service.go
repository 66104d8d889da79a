package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/visibility"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

type announcementRepository interface {
	ListVisible(ctx context.Context, filter models.VisibilityFilter) ([]models.Announcement, int, error)
	ListManaged(ctx context.Context, filter models.ManageFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id, viewerID string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement, userIDs, groupIDs []string) error
	Update(ctx context.Context, announcement *models.Announcement, userIDs, groupIDs []string) error
	Delete(ctx context.Context, id string) error
}

type groupMembershipReader interface {
	IDsForUser(ctx context.Context, userID string) ([]string, error)
}

type existenceCounter interface {
	CountExisting(ctx context.Context, ids []string) (int, error)
}

type categoryReader interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

type readMarker interface {
	MarkRead(ctx context.Context, userID, announcementID string, at time.Time) (*models.ReadStatus, bool, error)
}

// AnnouncementService implements the recipient list, the management list and
// announcement CRUD. The acting principal is always passed explicitly.
type AnnouncementService struct {
	repo         announcementRepository
	groups       groupMembershipReader
	users        existenceCounter
	groupCounter existenceCounter
	categories   categoryReader
	reads        readMarker
	capabilities CapabilityChecker
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// AnnouncementTargets bundles the lookups used to validate targeting.
type AnnouncementTargets struct {
	Memberships groupMembershipReader
	Users       existenceCounter
	Groups      existenceCounter
	Categories  categoryReader
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, targets AnnouncementTargets, reads readMarker, capabilities CapabilityChecker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AnnouncementService{
		repo:         repo,
		groups:       targets.Memberships,
		users:        targets.Users,
		groupCounter: targets.Groups,
		categories:   targets.Categories,
		reads:        reads,
		capabilities: capabilities,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// List returns the published announcements principal is a recipient of.
func (s *AnnouncementService) List(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error) {
	filter := models.VisibilityFilter{
		ViewerID:  principal.UserID,
		Now:       s.now(),
		Search:    strings.TrimSpace(query.Search),
		ReadState: models.ParseReadState(query.ReadState),
		Page:      normalizePage(query.Page),
		PageSize:  query.PageSize,
	}
	items, total, err := s.repo.ListVisible(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Manage returns the authoring/moderation list. scope "all" is restricted to
// managers and ignores publish time and targeting; any other scope lists the
// principal's own announcements.
func (s *AnnouncementService) Manage(ctx context.Context, principal models.Principal, query dto.AnnouncementQuery) ([]models.Announcement, models.Pagination, error) {
	filter := models.ManageFilter{
		ViewerID: principal.UserID,
		Search:   strings.TrimSpace(query.Search),
		Page:     normalizePage(query.Page),
		PageSize: query.PageSize,
	}
	if models.ManageScope(strings.ToLower(query.Scope)) == models.ManageScopeAll {
		manager, err := IsManager(ctx, s.capabilities, principal)
		if err != nil {
			return nil, models.Pagination{}, err
		}
		if !manager {
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrForbidden, "only announcement managers may list all announcements")
		}
	} else {
		author := principal.UserID
		filter.AuthorID = &author
	}
	items, total, err := s.repo.ListManaged(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// LoadVisible returns the announcement if principal may see it right now.
// Unknown ids map to NotFound; existing but hidden ones to NotVisible.
func (s *AnnouncementService) LoadVisible(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id, principal.UserID)
	if err != nil {
		return nil, err
	}
	groupIDs, err := s.groups.IDsForUser(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group membership")
	}
	viewer := visibility.Viewer{UserID: principal.UserID, GroupIDs: groupIDs}
	if !visibility.Visible(announcement, viewer, s.now()) {
		s.metrics.RecordVisibilityDenied()
		return nil, appErrors.ErrNotVisible
	}
	return announcement, nil
}

// Get loads the detail view and marks it read for principal.
func (s *AnnouncementService) Get(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error) {
	announcement, err := s.LoadVisible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	_, created, err := s.reads.MarkRead(ctx, principal.UserID, announcement.ID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement as read")
	}
	s.metrics.RecordReadMark(created)
	announcement.IsRead = true
	return announcement, nil
}

// GetForEdit loads an announcement through the unfiltered path for principals
// holding edit on announcement.
func (s *AnnouncementService) GetForEdit(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error) {
	if err := requireCapability(ctx, s.capabilities, principal, models.ActionEdit, models.ResourceAnnouncement); err != nil {
		return nil, err
	}
	return s.load(ctx, id, principal.UserID)
}

// GetForDelete loads an announcement for the delete confirmation page.
func (s *AnnouncementService) GetForDelete(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error) {
	if err := requireCapability(ctx, s.capabilities, principal, models.ActionDelete, models.ResourceAnnouncement); err != nil {
		return nil, err
	}
	return s.load(ctx, id, principal.UserID)
}

// Create stores a new announcement authored by principal.
func (s *AnnouncementService) Create(ctx context.Context, principal models.Principal, req dto.AnnouncementRequest) (*models.Announcement, error) {
	if err := requireCapability(ctx, s.capabilities, principal, models.ActionCreate, models.ResourceAnnouncement); err != nil {
		return nil, err
	}
	normalizeRequest(&req)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid announcement payload")
	}
	level, _ := models.ParseEmergencyLevel(req.EmergencyLevel)
	if err := s.validateReferences(ctx, req.CategoryID, req.TargetUserIDs, req.TargetGroupIDs); err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(req.Title),
		Content:        req.Content,
		CategoryID:     req.CategoryID,
		AuthorID:       principal.UserID,
		EmergencyLevel: level,
		CreatedAt:      s.now(),
	}
	if req.PublishAt != nil {
		announcement.PublishAt = req.PublishAt.UTC()
	}
	if err := s.repo.Create(ctx, announcement, req.TargetUserIDs, req.TargetGroupIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	s.logger.Info("announcement created",
		zap.String("announcement_id", announcement.ID),
		zap.String("author_id", principal.UserID),
		zap.String("emergency_level", string(level)),
	)
	return s.load(ctx, announcement.ID, principal.UserID)
}

// Update replaces every writable field. An omitted publish_at keeps the stored value.
func (s *AnnouncementService) Update(ctx context.Context, principal models.Principal, id string, req dto.AnnouncementRequest) (*models.Announcement, error) {
	existing, err := s.GetForEdit(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	normalizeRequest(&req)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid announcement payload")
	}
	level, _ := models.ParseEmergencyLevel(req.EmergencyLevel)
	if err := s.validateReferences(ctx, req.CategoryID, req.TargetUserIDs, req.TargetGroupIDs); err != nil {
		return nil, err
	}

	existing.Title = strings.TrimSpace(req.Title)
	existing.Content = req.Content
	existing.CategoryID = req.CategoryID
	existing.EmergencyLevel = level
	if req.PublishAt != nil {
		existing.PublishAt = req.PublishAt.UTC()
	}
	return s.save(ctx, principal, existing, req.TargetUserIDs, req.TargetGroupIDs)
}

// Patch applies the non-nil fields of req.
func (s *AnnouncementService) Patch(ctx context.Context, principal models.Principal, id string, req dto.AnnouncementPatch) (*models.Announcement, error) {
	existing, err := s.GetForEdit(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	clearCategory := req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) == ""
	if clearCategory {
		req.CategoryID = nil
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid announcement payload")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, appErrors.ErrValidation.WithFields(map[string]string{"title": "required"})
	}

	userIDs := existing.TargetUserIDs()
	groupIDs := existing.TargetGroupIDs()
	var checkUsers, checkGroups []string
	if req.TargetUserIDs != nil {
		userIDs = *req.TargetUserIDs
		checkUsers = userIDs
	}
	if req.TargetGroupIDs != nil {
		groupIDs = *req.TargetGroupIDs
		checkGroups = groupIDs
	}
	var checkCategory *string
	if clearCategory {
		existing.CategoryID = nil
	} else if req.CategoryID != nil {
		existing.CategoryID = req.CategoryID
		checkCategory = req.CategoryID
	}
	if err := s.validateReferences(ctx, checkCategory, checkUsers, checkGroups); err != nil {
		return nil, err
	}

	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		existing.Content = *req.Content
	}
	if req.PublishAt != nil {
		existing.PublishAt = req.PublishAt.UTC()
	}
	if req.EmergencyLevel != nil {
		level, _ := models.ParseEmergencyLevel(*req.EmergencyLevel)
		existing.EmergencyLevel = level
	}
	return s.save(ctx, principal, existing, userIDs, groupIDs)
}

// Delete removes an announcement; its targets and read markers go with it.
func (s *AnnouncementService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if err := requireCapability(ctx, s.capabilities, principal, models.ActionDelete, models.ResourceAnnouncement); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	s.logger.Info("announcement deleted", zap.String("announcement_id", id), zap.String("actor_id", principal.UserID))
	return nil
}

func (s *AnnouncementService) save(ctx context.Context, principal models.Principal, announcement *models.Announcement, userIDs, groupIDs []string) (*models.Announcement, error) {
	if err := s.repo.Update(ctx, announcement, userIDs, groupIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	s.logger.Info("announcement updated", zap.String("announcement_id", announcement.ID), zap.String("actor_id", principal.UserID))
	return s.load(ctx, announcement.ID, principal.UserID)
}

func (s *AnnouncementService) load(ctx context.Context, id, viewerID string) (*models.Announcement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	announcement, err := s.repo.GetByID(ctx, id, viewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) validateReferences(ctx context.Context, categoryID *string, userIDs, groupIDs []string) error {
	if categoryID != nil {
		if _, err := s.categories.GetByID(ctx, *categoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "unknown category_id")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
	}
	if err := checkAllExist(ctx, s.users, userIDs, "target_users_ids"); err != nil {
		return err
	}
	return checkAllExist(ctx, s.groupCounter, groupIDs, "target_groups_ids")
}

func checkAllExist(ctx context.Context, counter existenceCounter, ids []string, field string) error {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return nil
	}
	count, err := counter.CountExisting(ctx, unique)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate "+field)
	}
	if count != len(unique) {
		return appErrors.Clone(appErrors.ErrValidation, field+" references unknown ids")
	}
	return nil
}

func normalizeRequest(req *dto.AnnouncementRequest) {
	if req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) == "" {
		req.CategoryID = nil
	}
	req.EmergencyLevel = strings.ToLower(strings.TrimSpace(req.EmergencyLevel))
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func paginationFor(page, size, total int) models.Pagination {
	if size <= 0 || size > 100 {
		size = 20
	}
	return models.Pagination{Page: normalizePage(page), PageSize: size, TotalCount: total}
}
