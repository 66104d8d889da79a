package models

import "time"

// User represents an account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsSuperuser  bool       `db:"is_superuser" json:"is_superuser"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Group is a named set of users used for targeting and capabilities.
type Group struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// UserRef is the compact user shape embedded in announcement payloads.
type UserRef struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}

// GroupRef is the compact group shape embedded in announcement payloads.
type GroupRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Principal is the acting user passed explicitly into every visibility,
// read-tracking and capability decision.
type Principal struct {
	UserID      string
	Username    string
	IsSuperuser bool
}

// DirectoryFilter captures filtering for the user/group pickers.
type DirectoryFilter struct {
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TotalPages reports how many pages the result set spans.
func (p Pagination) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount == 0 {
		return 1
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}
