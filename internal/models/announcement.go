package models

import (
	"fmt"
	"strings"
	"time"
)

// EmergencyLevel classifies how urgent an announcement is.
type EmergencyLevel string

const (
	EmergencyLow    EmergencyLevel = "low"
	EmergencyMedium EmergencyLevel = "medium"
	EmergencyHigh   EmergencyLevel = "high"
	EmergencyUrgent EmergencyLevel = "urgent"
)

// EmergencyLevels lists the accepted levels from least to most urgent.
var EmergencyLevels = []EmergencyLevel{EmergencyLow, EmergencyMedium, EmergencyHigh, EmergencyUrgent}

// Ordinal maps a level to its sort weight. Unknown levels weigh 0.
func (l EmergencyLevel) Ordinal() int {
	switch l {
	case EmergencyUrgent:
		return 4
	case EmergencyHigh:
		return 3
	case EmergencyMedium:
		return 2
	case EmergencyLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the enumerated levels.
func (l EmergencyLevel) Valid() bool {
	return l.Ordinal() > 0
}

// ParseEmergencyLevel accepts a level case-insensitively; empty input means low.
func ParseEmergencyLevel(raw string) (EmergencyLevel, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return EmergencyLow, nil
	}
	level := EmergencyLevel(trimmed)
	if !level.Valid() {
		return "", fmt.Errorf("invalid emergency level %q", raw)
	}
	return level, nil
}

// ReadState filters announcement lists by the caller's read markers.
type ReadState string

const (
	ReadStateAll    ReadState = "all"
	ReadStateRead   ReadState = "read"
	ReadStateUnread ReadState = "unread"
)

// ParseReadState normalises a read_status query value; anything unknown means all.
func ParseReadState(raw string) ReadState {
	switch ReadState(strings.ToLower(strings.TrimSpace(raw))) {
	case ReadStateRead:
		return ReadStateRead
	case ReadStateUnread:
		return ReadStateUnread
	default:
		return ReadStateAll
	}
}

// Announcement represents a persisted announcement row plus the joined
// category/author columns and the caller-relative read flag.
type Announcement struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Content          string         `db:"content"`
	CategoryID       *string        `db:"category_id"`
	AuthorID         string         `db:"author_id"`
	PublishAt        time.Time      `db:"publish_at"`
	EmergencyLevel   EmergencyLevel `db:"emergency_level"`
	EmergencyOrdinal int            `db:"emergency_ordinal"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`

	CategoryName        *string `db:"category_name"`
	CategoryDescription *string `db:"category_description"`
	AuthorUsername      string  `db:"author_username"`
	IsRead              bool    `db:"is_read"`

	TargetUsers  []UserRef  `db:"-"`
	TargetGroups []GroupRef `db:"-"`
}

// IsPublished reports whether the announcement has reached its publish time.
func (a *Announcement) IsPublished(now time.Time) bool {
	return !a.PublishAt.After(now)
}

// SyncOrdinal recomputes the cached sort weight from the level. Called on every save.
func (a *Announcement) SyncOrdinal() {
	a.EmergencyOrdinal = a.EmergencyLevel.Ordinal()
}

// TargetUserIDs returns the ids of the targeted users.
func (a *Announcement) TargetUserIDs() []string {
	ids := make([]string, 0, len(a.TargetUsers))
	for _, u := range a.TargetUsers {
		ids = append(ids, u.ID)
	}
	return ids
}

// TargetGroupIDs returns the ids of the targeted groups.
func (a *Announcement) TargetGroupIDs() []string {
	ids := make([]string, 0, len(a.TargetGroups))
	for _, g := range a.TargetGroups {
		ids = append(ids, g.ID)
	}
	return ids
}

// VisibilityFilter drives the recipient-facing list query.
type VisibilityFilter struct {
	ViewerID  string
	Now       time.Time
	Search    string
	ReadState ReadState
	Page      int
	PageSize  int
}

// ManageScope selects the authoring/moderation list.
type ManageScope string

const (
	ManageScopeMine ManageScope = "mine"
	ManageScopeAll  ManageScope = "all"
)

// ManageFilter drives the unfiltered authoring/moderation list query.
type ManageFilter struct {
	ViewerID string
	AuthorID *string
	Search   string
	Page     int
	PageSize int
}
