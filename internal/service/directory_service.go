package service

import (
	"context"

	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

type userDirectory interface {
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.UserRef, int, error)
}

type groupDirectory interface {
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.GroupRef, int, error)
}

// DirectoryService feeds the user and group pickers used for targeting.
type DirectoryService struct {
	users  userDirectory
	groups groupDirectory
}

// NewDirectoryService constructs the service.
func NewDirectoryService(users userDirectory, groups groupDirectory) *DirectoryService {
	return &DirectoryService{users: users, groups: groups}
}

// Users lists active users.
func (s *DirectoryService) Users(ctx context.Context, filter models.DirectoryFilter) ([]models.UserRef, models.Pagination, error) {
	filter.Page = normalizePage(filter.Page)
	items, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if items == nil {
		items = []models.UserRef{}
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Groups lists groups.
func (s *DirectoryService) Groups(ctx context.Context, filter models.DirectoryFilter) ([]models.GroupRef, models.Pagination, error) {
	filter.Page = normalizePage(filter.Page)
	items, total, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	if items == nil {
		items = []models.GroupRef{}
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}
