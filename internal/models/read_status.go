package models

import "time"

// ReadStatus records the first time a user opened an announcement.
type ReadStatus struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"-"`
	AnnouncementID string    `db:"announcement_id" json:"-"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`

	Username          string `db:"username" json:"-"`
	AnnouncementTitle string `db:"announcement_title" json:"-"`
}

// ReadStatusFilter lists a user's own read markers.
type ReadStatusFilter struct {
	UserID   string
	Page     int
	PageSize int
}

// ReadReceipt is one row of the per-announcement receipts report.
type ReadReceipt struct {
	UserID   string    `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	ReadAt   time.Time `db:"read_at" json:"read_at"`
}
