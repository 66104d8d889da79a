package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/noticeboard/internal/models"
)

// AnnouncersGroup is the group seeded with full announcement capabilities.
const AnnouncersGroup = "Announcers"

// DefaultCategories are seeded on first run.
var DefaultCategories = []string{"Announcement", "Notice", "News", "Event", "Event Notice", "Emergency Notice"}

type bootstrapUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type bootstrapGroupRepository interface {
	Ensure(ctx context.Context, name string) (string, error)
	AddMember(ctx context.Context, groupID, userID string) error
	Grant(ctx context.Context, groupID string, capability models.Capability) error
}

type bootstrapCategoryRepository interface {
	EnsureByName(ctx context.Context, name, description string) (bool, error)
}

// BootstrapAdmin describes the superuser to create when missing.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// SeedReport summarises what a seed run changed.
type SeedReport struct {
	AdminCreated      bool
	GroupID           string
	CategoriesCreated []string
}

// BootstrapService seeds the initial admin, the announcers group and the
// default categories. Running it again changes nothing.
type BootstrapService struct {
	users        bootstrapUserRepository
	groups       bootstrapGroupRepository
	categories   bootstrapCategoryRepository
	capabilities *CapabilityService
	logger       *zap.Logger
}

// NewBootstrapService constructs the service. capabilities may be nil.
func NewBootstrapService(users bootstrapUserRepository, groups bootstrapGroupRepository, categories bootstrapCategoryRepository, capabilities *CapabilityService, logger *zap.Logger) *BootstrapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BootstrapService{users: users, groups: groups, categories: categories, capabilities: capabilities, logger: logger}
}

// Seed runs every step.
func (s *BootstrapService) Seed(ctx context.Context, admin BootstrapAdmin) (*SeedReport, error) {
	report := &SeedReport{}

	adminUser, created, err := s.ensureAdmin(ctx, admin)
	if err != nil {
		return nil, err
	}
	report.AdminCreated = created

	groupID, err := s.groups.Ensure(ctx, AnnouncersGroup)
	if err != nil {
		return nil, err
	}
	report.GroupID = groupID
	for _, action := range []models.Action{models.ActionView, models.ActionCreate, models.ActionEdit, models.ActionDelete} {
		if err := s.groups.Grant(ctx, groupID, models.Capability{Action: action, Resource: models.ResourceAnnouncement}); err != nil {
			return nil, err
		}
	}
	if adminUser != nil {
		if err := s.groups.AddMember(ctx, groupID, adminUser.ID); err != nil {
			return nil, err
		}
	}
	if s.capabilities != nil {
		s.capabilities.Invalidate(ctx)
	}

	for _, name := range DefaultCategories {
		created, err := s.categories.EnsureByName(ctx, name, "")
		if err != nil {
			return nil, err
		}
		if created {
			report.CategoriesCreated = append(report.CategoriesCreated, name)
		}
	}

	s.logger.Info("seed completed",
		zap.Bool("admin_created", report.AdminCreated),
		zap.Strings("categories_created", report.CategoriesCreated),
	)
	return report, nil
}

func (s *BootstrapService) ensureAdmin(ctx context.Context, admin BootstrapAdmin) (*models.User, bool, error) {
	if admin.Username == "" {
		return nil, false, nil
	}
	existing, err := s.users.FindByUsername(ctx, admin.Username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if admin.Password == "" {
		s.logger.Warn("admin user missing and no bootstrap password configured; skipping", zap.String("username", admin.Username))
		return nil, false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash admin password: %w", err)
	}
	user := &models.User{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: string(hash),
		IsSuperuser:  true,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
