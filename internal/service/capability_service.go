package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/pkg/cache"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

// CapabilityChecker answers whether a principal may perform action on resource.
// Services and middleware depend on this interface only.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, principal models.Principal, action models.Action, resource models.Resource) (bool, error)
}

type capabilityRepository interface {
	CapabilitiesForUser(ctx context.Context, userID string) ([]models.Capability, error)
}

// CapabilityService resolves capabilities granted through group membership.
// Superusers hold every capability.
type CapabilityService struct {
	repo   capabilityRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCapabilityService constructs the service.
func NewCapabilityService(repo capabilityRepository, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *CapabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapabilityService{repo: repo, cache: cacheSvc, ttl: ttl, logger: logger}
}

// HasCapability implements CapabilityChecker.
func (s *CapabilityService) HasCapability(ctx context.Context, principal models.Principal, action models.Action, resource models.Resource) (bool, error) {
	if principal.IsSuperuser {
		return true, nil
	}
	if principal.UserID == "" {
		return false, nil
	}
	caps, err := s.Capabilities(ctx, principal)
	if err != nil {
		return false, err
	}
	want := models.Capability{Action: action, Resource: resource}
	for _, c := range caps {
		if c == want {
			return true, nil
		}
	}
	return false, nil
}

// Capabilities lists the grants held by principal through its groups.
func (s *CapabilityService) Capabilities(ctx context.Context, principal models.Principal) ([]models.Capability, error) {
	key := capabilityCacheKey(principal.UserID)
	var caps []models.Capability
	if hit, _ := s.cache.Get(ctx, key, &caps); hit {
		return caps, nil
	}
	caps, err := s.repo.CapabilitiesForUser(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capabilities")
	}
	if caps == nil {
		caps = []models.Capability{}
	}
	_ = s.cache.Set(ctx, key, caps, s.ttl)
	return caps, nil
}

// Invalidate drops every cached capability set, e.g. after grants change.
func (s *CapabilityService) Invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cache.Key("caps", "*"))
}

// IsManager reports whether principal may use the unfiltered management list:
// superusers and holders of edit on announcement.
func IsManager(ctx context.Context, checker CapabilityChecker, principal models.Principal) (bool, error) {
	if principal.IsSuperuser {
		return true, nil
	}
	return checker.HasCapability(ctx, principal, models.ActionEdit, models.ResourceAnnouncement)
}

// requireCapability converts a negative check into a PermissionDenied error.
func requireCapability(ctx context.Context, checker CapabilityChecker, principal models.Principal, action models.Action, resource models.Resource) error {
	ok, err := checker.HasCapability(ctx, principal, action, resource)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to "+string(action)+" "+string(resource)+"s")
	}
	return nil
}

func capabilityCacheKey(userID string) string {
	return cache.Key("caps", userID)
}
