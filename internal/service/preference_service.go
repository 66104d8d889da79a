package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/noticeboard/pkg/cache"
)

// PageSizeChoices are the sizes offered by the UI selector.
var PageSizeChoices = []int{5, 10, 20, 50}

// PreferenceService persists per-user list preferences for API clients.
// The UI keeps its own copy in the session.
type PreferenceService struct {
	cache       *CacheService
	ttl         time.Duration
	defaultSize int
	maxSize     int
}

// NewPreferenceService constructs the service.
func NewPreferenceService(cacheSvc *CacheService, ttl time.Duration, defaultSize, maxSize int) *PreferenceService {
	if maxSize <= 0 {
		maxSize = 100
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = 10
	}
	return &PreferenceService{cache: cacheSvc, ttl: ttl, defaultSize: defaultSize, maxSize: maxSize}
}

// DefaultPageSize returns the configured fallback.
func (s *PreferenceService) DefaultPageSize() int {
	return s.defaultSize
}

// ParsePageSize validates a raw page_size value.
func (s *PreferenceService) ParsePageSize(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > s.maxSize {
		return 0, false
	}
	return n, true
}

// ResolvePageSize picks the page size for userID: a valid explicit value wins
// and is remembered, otherwise the stored preference, otherwise the default.
func (s *PreferenceService) ResolvePageSize(ctx context.Context, userID, raw string) int {
	key := cache.Key("prefs", userID, "page_size")
	if size, ok := s.ParsePageSize(raw); ok {
		_ = s.cache.Set(ctx, key, size, s.ttl)
		return size
	}
	var stored int
	if hit, _ := s.cache.Get(ctx, key, &stored); hit && stored >= 1 && stored <= s.maxSize {
		return stored
	}
	return s.defaultSize
}
