package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

type readStatusRepository interface {
	MarkRead(ctx context.Context, userID, announcementID string, at time.Time) (*models.ReadStatus, bool, error)
	Exists(ctx context.Context, userID, announcementID string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.ReadStatus, error)
	ListForUser(ctx context.Context, filter models.ReadStatusFilter) ([]models.ReadStatus, int, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteFor(ctx context.Context, userID, announcementID string) error
}

type visibleAnnouncementLoader interface {
	LoadVisible(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
}

// ReadStatusService tracks which announcements a user has opened.
type ReadStatusService struct {
	repo          readStatusRepository
	announcements visibleAnnouncementLoader
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewReadStatusService constructs the service.
func NewReadStatusService(repo readStatusRepository, announcements visibleAnnouncementLoader, metrics *MetricsService, logger *zap.Logger) *ReadStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadStatusService{
		repo:          repo,
		announcements: announcements,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// MarkRead records that principal has read the announcement. Repeated calls
// return the first marker unchanged; created reports whether this call made it.
// Only announcements visible to principal can be marked.
func (s *ReadStatusService) MarkRead(ctx context.Context, principal models.Principal, announcementID string) (*models.ReadStatus, bool, error) {
	announcementID = strings.TrimSpace(announcementID)
	if announcementID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "announcement_id is required")
	}
	if _, err := s.announcements.LoadVisible(ctx, principal, announcementID); err != nil {
		return nil, false, err
	}
	status, created, err := s.repo.MarkRead(ctx, principal.UserID, announcementID, s.now())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement as read")
	}
	s.metrics.RecordReadMark(created)
	return status, created, nil
}

// MarkUnread removes principal's marker for the announcement. Missing markers are not an error.
func (s *ReadStatusService) MarkUnread(ctx context.Context, principal models.Principal, announcementID string) error {
	if _, err := uuid.Parse(announcementID); err != nil {
		return nil
	}
	if err := s.repo.DeleteFor(ctx, principal.UserID, announcementID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement as unread")
	}
	return nil
}

// DeleteByID removes a marker by id. Markers owned by someone else are
// refused with PermissionDenied and left intact; unknown ids are a no-op.
func (s *ReadStatusService) DeleteByID(ctx context.Context, principal models.Principal, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	status, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load read status")
	}
	if status.UserID != principal.UserID {
		s.logger.Warn("refused to delete foreign read status",
			zap.String("read_status_id", id),
			zap.String("actor_id", principal.UserID),
		)
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete your own read status")
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete read status")
	}
	return nil
}

// IsRead reports whether principal has a marker for the announcement.
func (s *ReadStatusService) IsRead(ctx context.Context, principal models.Principal, announcementID string) (bool, error) {
	if _, err := uuid.Parse(announcementID); err != nil {
		return false, nil
	}
	ok, err := s.repo.Exists(ctx, principal.UserID, announcementID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check read status")
	}
	return ok, nil
}

// List returns principal's own markers, newest first.
func (s *ReadStatusService) List(ctx context.Context, principal models.Principal, page, pageSize int) ([]models.ReadStatus, models.Pagination, error) {
	filter := models.ReadStatusFilter{UserID: principal.UserID, Page: normalizePage(page), PageSize: pageSize}
	items, total, err := s.repo.ListForUser(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list read statuses")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one of principal's markers. Other users' markers are reported as not found.
func (s *ReadStatusService) Get(ctx context.Context, principal models.Principal, id string) (*models.ReadStatus, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "read status not found")
	}
	status, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "read status not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load read status")
	}
	if status.UserID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "read status not found")
	}
	return status, nil
}
