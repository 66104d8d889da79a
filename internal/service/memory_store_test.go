package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/visibility"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

// memoryStore is an in-memory stand-in for the postgres repositories that
// applies the same visibility, ordering and uniqueness rules as the SQL.
type memoryStore struct {
	mu            sync.Mutex
	announcements map[string]*models.Announcement
	targetUsers   map[string][]string
	targetGroups  map[string][]string
	users         map[string]string
	groups        map[string]string
	memberships   map[string][]string
	categories    map[string]models.Category
	reads         map[string]*models.ReadStatus
	caps          map[string][]models.Capability
	capLookups    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		announcements: map[string]*models.Announcement{},
		targetUsers:   map[string][]string{},
		targetGroups:  map[string][]string{},
		users:         map[string]string{},
		groups:        map[string]string{},
		memberships:   map[string][]string{},
		categories:    map[string]models.Category{},
		reads:         map[string]*models.ReadStatus{},
		caps:          map[string][]models.Capability{},
	}
}

func (m *memoryStore) addUser(name string, groupIDs ...string) models.Principal {
	id := uuid.NewString()
	m.users[id] = name
	m.memberships[id] = groupIDs
	return models.Principal{UserID: id, Username: name}
}

func (m *memoryStore) addGroup(name string) string {
	id := uuid.NewString()
	m.groups[id] = name
	return id
}

func (m *memoryStore) grant(userID string, caps ...models.Capability) {
	m.caps[userID] = append(m.caps[userID], caps...)
}

func (m *memoryStore) hydrate(a models.Announcement, viewerID string) models.Announcement {
	a.AuthorUsername = m.users[a.AuthorID]
	a.CategoryName, a.CategoryDescription = nil, nil
	if a.CategoryID != nil {
		if c, ok := m.categories[*a.CategoryID]; ok {
			name, desc := c.Name, c.Description
			a.CategoryName, a.CategoryDescription = &name, &desc
		}
	}
	a.TargetUsers = []models.UserRef{}
	for _, id := range m.targetUsers[a.ID] {
		a.TargetUsers = append(a.TargetUsers, models.UserRef{ID: id, Username: m.users[id]})
	}
	a.TargetGroups = []models.GroupRef{}
	for _, id := range m.targetGroups[a.ID] {
		a.TargetGroups = append(a.TargetGroups, models.GroupRef{ID: id, Name: m.groups[id]})
	}
	_, a.IsRead = m.reads[viewerID+"|"+a.ID]
	return a
}

func (m *memoryStore) sorted(items []models.Announcement) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.EmergencyOrdinal != b.EmergencyOrdinal {
			return a.EmergencyOrdinal > b.EmergencyOrdinal
		}
		if !a.PublishAt.Equal(b.PublishAt) {
			return a.PublishAt.After(b.PublishAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func page(items []models.Announcement, pageNum, size int) []models.Announcement {
	if size <= 0 || size > 100 {
		size = 20
	}
	if pageNum < 1 {
		pageNum = 1
	}
	start := (pageNum - 1) * size
	if start >= len(items) {
		return []models.Announcement{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func matches(a models.Announcement, search string) bool {
	if search == "" {
		return true
	}
	term := strings.ToLower(search)
	return strings.Contains(strings.ToLower(a.Title), term) || strings.Contains(strings.ToLower(a.Content), term)
}

func (m *memoryStore) ListVisible(ctx context.Context, filter models.VisibilityFilter) ([]models.Announcement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	viewer := visibility.Viewer{UserID: filter.ViewerID, GroupIDs: m.memberships[filter.ViewerID]}
	var out []models.Announcement
	for _, stored := range m.announcements {
		a := m.hydrate(*stored, filter.ViewerID)
		if !visibility.Visible(&a, viewer, filter.Now) || !matches(a, filter.Search) {
			continue
		}
		if filter.ReadState == models.ReadStateRead && !a.IsRead {
			continue
		}
		if filter.ReadState == models.ReadStateUnread && a.IsRead {
			continue
		}
		out = append(out, a)
	}
	m.sorted(out)
	return page(out, filter.Page, filter.PageSize), len(out), nil
}

func (m *memoryStore) ListManaged(ctx context.Context, filter models.ManageFilter) ([]models.Announcement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Announcement
	for _, stored := range m.announcements {
		if filter.AuthorID != nil && stored.AuthorID != *filter.AuthorID {
			continue
		}
		a := m.hydrate(*stored, filter.ViewerID)
		if !matches(a, filter.Search) {
			continue
		}
		out = append(out, a)
	}
	m.sorted(out)
	return page(out, filter.Page, filter.PageSize), len(out), nil
}

func (m *memoryStore) GetByID(ctx context.Context, id, viewerID string) (*models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a := m.hydrate(*stored, viewerID)
	return &a, nil
}

func (m *memoryStore) Create(ctx context.Context, a *models.Announcement, userIDs, groupIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PublishAt.IsZero() {
		a.PublishAt = a.CreatedAt
	}
	a.UpdatedAt = a.CreatedAt
	a.SyncOrdinal()
	stored := *a
	m.announcements[a.ID] = &stored
	m.targetUsers[a.ID] = uniqueIDs(userIDs)
	m.targetGroups[a.ID] = uniqueIDs(groupIDs)
	return nil
}

func (m *memoryStore) Update(ctx context.Context, a *models.Announcement, userIDs, groupIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.announcements[a.ID]; !ok {
		return sql.ErrNoRows
	}
	a.SyncOrdinal()
	a.UpdatedAt = time.Now().UTC()
	stored := *a
	m.announcements[a.ID] = &stored
	m.targetUsers[a.ID] = uniqueIDs(userIDs)
	m.targetGroups[a.ID] = uniqueIDs(groupIDs)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.announcements[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.announcements, id)
	for key, rs := range m.reads {
		if rs.AnnouncementID == id {
			delete(m.reads, key)
		}
	}
	return nil
}

func (m *memoryStore) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	return m.memberships[userID], nil
}

func (m *memoryStore) CapabilitiesForUser(ctx context.Context, userID string) ([]models.Capability, error) {
	m.capLookups++
	return m.caps[userID], nil
}

type userCounter struct{ *memoryStore }

func (u userCounter) CountExisting(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := u.users[id]; ok {
			n++
		}
	}
	return n, nil
}

type groupCounter struct{ *memoryStore }

func (g groupCounter) CountExisting(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := g.groups[id]; ok {
			n++
		}
	}
	return n, nil
}

// categoryStore mirrors categories with ON DELETE SET NULL on announcements.
type categoryStore struct{ *memoryStore }

func (c categoryStore) List(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c categoryStore) GetByID(ctx context.Context, id string) (*models.Category, error) {
	cat, ok := c.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &cat, nil
}

func (c categoryStore) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for id, cat := range c.categories {
		if id != excludeID && strings.EqualFold(cat.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (c categoryStore) Create(ctx context.Context, category *models.Category) error {
	c.categories[category.ID] = *category
	return nil
}

func (c categoryStore) Update(ctx context.Context, category *models.Category) error {
	if _, ok := c.categories[category.ID]; !ok {
		return sql.ErrNoRows
	}
	c.categories[category.ID] = *category
	return nil
}

func (c categoryStore) Delete(ctx context.Context, id string) error {
	if _, ok := c.categories[id]; !ok {
		return sql.ErrNoRows
	}
	delete(c.categories, id)
	for _, a := range c.announcements {
		if a.CategoryID != nil && *a.CategoryID == id {
			a.CategoryID = nil
		}
	}
	return nil
}

// readStore enforces one marker per (user, announcement).
type readStore struct{ *memoryStore }

func (r readStore) MarkRead(ctx context.Context, userID, announcementID string, at time.Time) (*models.ReadStatus, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "|" + announcementID
	if existing, ok := r.reads[key]; ok {
		dup := *existing
		return &dup, false, nil
	}
	rs := &models.ReadStatus{ID: uuid.NewString(), UserID: userID, AnnouncementID: announcementID, ReadAt: at}
	r.reads[key] = rs
	dup := *rs
	return &dup, true, nil
}

func (r readStore) Exists(ctx context.Context, userID, announcementID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.reads[userID+"|"+announcementID]
	return ok, nil
}

func (r readStore) GetByID(ctx context.Context, id string) (*models.ReadStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rs := range r.reads {
		if rs.ID == id {
			dup := *rs
			return &dup, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r readStore) ListForUser(ctx context.Context, filter models.ReadStatusFilter) ([]models.ReadStatus, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReadStatus
	for _, rs := range r.reads {
		if rs.UserID == filter.UserID {
			out = append(out, *rs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadAt.After(out[j].ReadAt) })
	return out, len(out), nil
}

func (r readStore) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rs := range r.reads {
		if rs.ID == id {
			delete(r.reads, key)
		}
	}
	return nil
}

func (r readStore) DeleteFor(ctx context.Context, userID, announcementID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reads, userID+"|"+announcementID)
	return nil
}

func (r readStore) ListReceipts(ctx context.Context, announcementID string) ([]models.ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReadReceipt
	for _, rs := range r.reads {
		if rs.AnnouncementID == announcementID {
			out = append(out, models.ReadReceipt{UserID: rs.UserID, Username: r.users[rs.UserID], ReadAt: rs.ReadAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadAt.Before(out[j].ReadAt) })
	return out, nil
}

// memoryCache is an in-memory CacheRepository.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]interface{}{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *int:
		*d = value.(int)
	case *[]models.Capability:
		*d = value.([]models.Capability)
	case *[]models.Category:
		*d = value.([]models.Category)
	}
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
