package dto

import (
	"time"

	"github.com/noah-isme/noticeboard/internal/models"
)

// AnnouncementQuery captures list query parameters shared by the recipient and
// management lists.
type AnnouncementQuery struct {
	Search    string `form:"q"`
	ReadState string `form:"read_status"`
	Scope     string `form:"scope"`
	Page      int    `form:"page"`
	PageSize  int    `form:"-"`
}

// AnnouncementRequest is the create / full update payload.
type AnnouncementRequest struct {
	Title          string     `json:"title" form:"title" validate:"required,max=200"`
	Content        string     `json:"content" form:"content" validate:"required"`
	CategoryID     *string    `json:"category_id" form:"category_id" validate:"omitempty,uuid"`
	PublishAt      *time.Time `json:"publish_at" form:"-"`
	EmergencyLevel string     `json:"emergency_level" form:"emergency_level" validate:"omitempty,emergency_level"`
	TargetUserIDs  []string   `json:"target_users_ids" form:"target_users_ids" validate:"omitempty,dive,uuid"`
	TargetGroupIDs []string   `json:"target_groups_ids" form:"target_groups_ids" validate:"omitempty,dive,uuid"`
}

// AnnouncementPatch is the partial update payload. Nil fields are left as
// they are; an empty category_id clears the category and an empty target
// list clears that target set.
type AnnouncementPatch struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Content        *string    `json:"content" validate:"omitempty,min=1"`
	CategoryID     *string    `json:"category_id" validate:"omitempty,uuid"`
	PublishAt      *time.Time `json:"publish_at"`
	EmergencyLevel *string    `json:"emergency_level" validate:"omitempty,emergency_level"`
	TargetUserIDs  *[]string  `json:"target_users_ids" validate:"omitempty,dive,uuid"`
	TargetGroupIDs *[]string  `json:"target_groups_ids" validate:"omitempty,dive,uuid"`
}

// CategoryRef is the nested category shape of an announcement.
type CategoryRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AnnouncementResponse is the public JSON representation of an announcement.
type AnnouncementResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Category       *CategoryRef      `json:"category"`
	Author         models.UserRef    `json:"author"`
	PublishAt      time.Time         `json:"publish_at"`
	IsPublished    bool              `json:"is_published"`
	TargetUsers    []models.UserRef  `json:"target_users"`
	TargetGroups   []models.GroupRef `json:"target_groups"`
	EmergencyLevel string            `json:"emergency_level"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	IsRead         bool              `json:"is_read"`
}

// NewAnnouncementResponse renders a; is_published is evaluated against now.
func NewAnnouncementResponse(a models.Announcement, now time.Time) AnnouncementResponse {
	res := AnnouncementResponse{
		ID:             a.ID,
		Title:          a.Title,
		Content:        a.Content,
		Author:         models.UserRef{ID: a.AuthorID, Username: a.AuthorUsername},
		PublishAt:      a.PublishAt,
		IsPublished:    a.IsPublished(now),
		TargetUsers:    a.TargetUsers,
		TargetGroups:   a.TargetGroups,
		EmergencyLevel: string(a.EmergencyLevel),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		IsRead:         a.IsRead,
	}
	if a.CategoryID != nil {
		ref := &CategoryRef{ID: *a.CategoryID}
		if a.CategoryName != nil {
			ref.Name = *a.CategoryName
		}
		if a.CategoryDescription != nil {
			ref.Description = *a.CategoryDescription
		}
		res.Category = ref
	}
	if res.TargetUsers == nil {
		res.TargetUsers = []models.UserRef{}
	}
	if res.TargetGroups == nil {
		res.TargetGroups = []models.GroupRef{}
	}
	return res
}

// NewAnnouncementResponses renders a list.
func NewAnnouncementResponses(items []models.Announcement, now time.Time) []AnnouncementResponse {
	out := make([]AnnouncementResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewAnnouncementResponse(item, now))
	}
	return out
}
