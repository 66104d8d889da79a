package dto

import (
	"time"

	"github.com/noah-isme/noticeboard/internal/models"
)

// MarkReadRequest is the body of POST /read-status.
type MarkReadRequest struct {
	AnnouncementID string `json:"announcement_id"`
}

// ReadStatusResponse is the public shape of a read marker.
type ReadStatusResponse struct {
	ID                string    `json:"id"`
	User              string    `json:"user"`
	Announcement      string    `json:"announcement"`
	AnnouncementTitle string    `json:"announcement_title,omitempty"`
	ReadAt            time.Time `json:"read_at"`
}

// MarkReadResponse reports the stored marker and whether this call created it.
type MarkReadResponse struct {
	ReadStatusResponse
	WasAlreadyRead bool `json:"was_already_read"`
}

// NewReadStatusResponse renders a marker.
func NewReadStatusResponse(rs models.ReadStatus) ReadStatusResponse {
	return ReadStatusResponse{
		ID:                rs.ID,
		User:              rs.UserID,
		Announcement:      rs.AnnouncementID,
		AnnouncementTitle: rs.AnnouncementTitle,
		ReadAt:            rs.ReadAt,
	}
}
