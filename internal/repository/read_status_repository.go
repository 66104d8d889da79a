package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/noticeboard/internal/models"
)

// ReadStatusRepository persists per-user read markers.
type ReadStatusRepository struct {
	db *sqlx.DB
}

// NewReadStatusRepository creates the repository.
func NewReadStatusRepository(db *sqlx.DB) *ReadStatusRepository {
	return &ReadStatusRepository{db: db}
}

// MarkRead inserts the marker if absent and returns the stored row. The insert
// is a single ON CONFLICT statement so concurrent callers never see a unique
// violation; a caller that loses the race reads the winner's row afterwards.
// created reports whether this call inserted the row.
func (r *ReadStatusRepository) MarkRead(ctx context.Context, userID, announcementID string, at time.Time) (*models.ReadStatus, bool, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	const insert = `INSERT INTO read_statuses (id, user_id, announcement_id, read_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, announcement_id) DO NOTHING
RETURNING id, user_id, announcement_id, read_at`
	var status models.ReadStatus
	err := r.db.GetContext(ctx, &status, insert, uuid.NewString(), userID, announcementID, at)
	if err == nil {
		return &status, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark read: %w", err)
	}
	existing, err := r.Find(ctx, userID, announcementID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Find returns the marker for a (user, announcement) pair.
func (r *ReadStatusRepository) Find(ctx context.Context, userID, announcementID string) (*models.ReadStatus, error) {
	const query = `SELECT id, user_id, announcement_id, read_at FROM read_statuses WHERE user_id = $1 AND announcement_id = $2`
	var status models.ReadStatus
	if err := r.db.GetContext(ctx, &status, query, userID, announcementID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find read status: %w", err)
	}
	return &status, nil
}

// Exists reports whether the user has read the announcement.
func (r *ReadStatusRepository) Exists(ctx context.Context, userID, announcementID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM read_statuses WHERE user_id = $1 AND announcement_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, announcementID); err != nil {
		return false, fmt.Errorf("check read status: %w", err)
	}
	return exists, nil
}

// GetByID returns a marker by identifier regardless of owner.
func (r *ReadStatusRepository) GetByID(ctx context.Context, id string) (*models.ReadStatus, error) {
	const query = `SELECT rs.id, rs.user_id, rs.announcement_id, rs.read_at, u.username, a.title AS announcement_title
FROM read_statuses rs
JOIN users u ON u.id = rs.user_id
JOIN announcements a ON a.id = rs.announcement_id
WHERE rs.id = $1`
	var status models.ReadStatus
	if err := r.db.GetContext(ctx, &status, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get read status: %w", err)
	}
	return &status, nil
}

// ListForUser returns the user's markers, most recent first.
func (r *ReadStatusRepository) ListForUser(ctx context.Context, filter models.ReadStatusFilter) ([]models.ReadStatus, int, error) {
	size, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT rs.id, rs.user_id, rs.announcement_id, rs.read_at, u.username, a.title AS announcement_title
FROM read_statuses rs
JOIN users u ON u.id = rs.user_id
JOIN announcements a ON a.id = rs.announcement_id
WHERE rs.user_id = $1
ORDER BY rs.read_at DESC
LIMIT %d OFFSET %d`, size, offset)
	var statuses []models.ReadStatus
	if err := r.db.SelectContext(ctx, &statuses, query, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list read statuses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM read_statuses WHERE user_id = $1", filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count read statuses: %w", err)
	}
	return statuses, total, nil
}

// DeleteByID removes a marker by identifier.
func (r *ReadStatusRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM read_statuses WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete read status: %w", err)
	}
	return nil
}

// DeleteFor removes the user's marker for an announcement; absent rows are fine.
func (r *ReadStatusRepository) DeleteFor(ctx context.Context, userID, announcementID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM read_statuses WHERE user_id = $1 AND announcement_id = $2", userID, announcementID); err != nil {
		return fmt.Errorf("delete read status: %w", err)
	}
	return nil
}

// ListReceipts returns who read an announcement and when, in read order.
func (r *ReadStatusRepository) ListReceipts(ctx context.Context, announcementID string) ([]models.ReadReceipt, error) {
	const query = `SELECT rs.user_id, u.username, rs.read_at
FROM read_statuses rs JOIN users u ON u.id = rs.user_id
WHERE rs.announcement_id = $1
ORDER BY rs.read_at ASC`
	var receipts []models.ReadReceipt
	if err := r.db.SelectContext(ctx, &receipts, query, announcementID); err != nil {
		return nil, fmt.Errorf("list read receipts: %w", err)
	}
	return receipts, nil
}
