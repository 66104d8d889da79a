package web

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

// announcementForm holds the raw form values so a rejected submission is
// shown back exactly as typed.
type announcementForm struct {
	Title          string
	Content        string
	CategoryID     string
	PublishAt      string
	EmergencyLevel string
	TargetUsers    map[string]bool
	TargetGroups   map[string]bool
}

func formFromAnnouncement(a *models.Announcement) announcementForm {
	form := announcementForm{
		Title:          a.Title,
		Content:        a.Content,
		PublishAt:      a.PublishAt.UTC().Format(formTimeSpec),
		EmergencyLevel: string(a.EmergencyLevel),
		TargetUsers:    toSet(a.TargetUserIDs()),
		TargetGroups:   toSet(a.TargetGroupIDs()),
	}
	if a.CategoryID != nil {
		form.CategoryID = *a.CategoryID
	}
	return form
}

// parseAnnouncementForm reads the posted fields. publish_at comes from a
// datetime-local input and is taken as UTC; blank means now.
func parseAnnouncementForm(c *gin.Context) (announcementForm, dto.AnnouncementRequest, error) {
	form := announcementForm{
		Title:          c.PostForm("title"),
		Content:        c.PostForm("content"),
		CategoryID:     strings.TrimSpace(c.PostForm("category_id")),
		PublishAt:      strings.TrimSpace(c.PostForm("publish_at")),
		EmergencyLevel: c.PostForm("emergency_level"),
	}
	userIDs := nonEmpty(c.PostFormArray("target_users_ids"))
	groupIDs := nonEmpty(c.PostFormArray("target_groups_ids"))
	form.TargetUsers = toSet(userIDs)
	form.TargetGroups = toSet(groupIDs)

	req := dto.AnnouncementRequest{
		Title:          form.Title,
		Content:        form.Content,
		EmergencyLevel: form.EmergencyLevel,
		TargetUserIDs:  userIDs,
		TargetGroupIDs: groupIDs,
	}
	if form.CategoryID != "" {
		category := form.CategoryID
		req.CategoryID = &category
	}
	if form.PublishAt != "" {
		at, err := time.ParseInLocation(formTimeSpec, form.PublishAt, time.UTC)
		if err != nil {
			return form, req, appErrors.Clone(appErrors.ErrValidation, "publish time must look like 2006-01-02T15:04")
		}
		req.PublishAt = &at
	}
	return form, req, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
