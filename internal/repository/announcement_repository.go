package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/visibility"
)

const (
	announcementColumns = `a.id, a.title, a.content, a.category_id, a.author_id, a.publish_at, a.emergency_level, a.emergency_ordinal, a.created_at, a.updated_at,
c.name AS category_name, c.description AS category_description, u.username AS author_username,
EXISTS (SELECT 1 FROM read_statuses rs WHERE rs.announcement_id = a.id AND rs.user_id = $1) AS is_read`
	announcementFrom = `FROM announcements a
LEFT JOIN categories c ON c.id = a.category_id
JOIN users u ON u.id = a.author_id`
	announcementOrder = `ORDER BY a.emergency_ordinal DESC, a.publish_at DESC, a.created_at ASC, a.id ASC`
)

// AnnouncementRepository provides persistence for announcements and their targeting.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// ListVisible returns the published announcements the viewer is a recipient of.
func (r *AnnouncementRepository) ListVisible(ctx context.Context, filter models.VisibilityFilter) ([]models.Announcement, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	args := []interface{}{filter.ViewerID, now}
	where := []string{"a.publish_at <= $2", visibility.Predicate("a", 1)}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.content ILIKE $%d)", len(args), len(args)))
	}
	switch filter.ReadState {
	case models.ReadStateRead:
		where = append(where, "EXISTS (SELECT 1 FROM read_statuses rs WHERE rs.announcement_id = a.id AND rs.user_id = $1)")
	case models.ReadStateUnread:
		where = append(where, "NOT EXISTS (SELECT 1 FROM read_statuses rs WHERE rs.announcement_id = a.id AND rs.user_id = $1)")
	}
	whereClause := strings.Join(where, "\nAND ")

	size, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s\n%s\nWHERE %s\n%s\nLIMIT %d OFFSET %d", announcementColumns, announcementFrom, whereClause, announcementOrder, size, offset)
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visible announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements a\nWHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visible announcements: %w", err)
	}
	if err := r.loadTargets(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListManaged returns announcements for authoring and moderation views without
// publish-time or targeting restrictions. AuthorID narrows to one author.
func (r *AnnouncementRepository) ListManaged(ctx context.Context, filter models.ManageFilter) ([]models.Announcement, int, error) {
	size, offset := pageWindow(filter.Page, filter.PageSize)

	listWhere, listArgs := managedWhere(filter, 2)
	args := append([]interface{}{filter.ViewerID}, listArgs...)
	query := fmt.Sprintf("SELECT %s\n%s\nWHERE %s\n%s\nLIMIT %d OFFSET %d", announcementColumns, announcementFrom, listWhere, announcementOrder, size, offset)
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list managed announcements: %w", err)
	}

	countWhere, countArgs := managedWhere(filter, 1)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcements a WHERE "+countWhere, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count managed announcements: %w", err)
	}
	if err := r.loadTargets(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID loads one announcement with its targets; IsRead is relative to viewerID.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id, viewerID string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s\n%s\nWHERE a.id = $2", announcementColumns, announcementFrom)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, viewerID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	items := []models.Announcement{announcement}
	if err := r.loadTargets(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Create inserts an announcement with its target users and groups in one transaction.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement, userIDs, groupIDs []string) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	if announcement.PublishAt.IsZero() {
		announcement.PublishAt = announcement.CreatedAt
	}
	announcement.UpdatedAt = now
	announcement.SyncOrdinal()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO announcements (id, title, content, category_id, author_id, publish_at, emergency_level, emergency_ordinal, created_at, updated_at)
VALUES (:id, :title, :content, :category_id, :author_id, :publish_at, :emergency_level, :emergency_ordinal, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, announcement); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create announcement: %w", err)
	}
	if err := r.replaceTargetsTx(ctx, tx, announcement.ID, userIDs, groupIDs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns and replaces both target sets.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement, userIDs, groupIDs []string) error {
	announcement.UpdatedAt = time.Now().UTC()
	announcement.SyncOrdinal()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `UPDATE announcements SET title = :title, content = :content, category_id = :category_id, publish_at = :publish_at,
emergency_level = :emergency_level, emergency_ordinal = :emergency_ordinal, updated_at = :updated_at
WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, announcement)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update announcement: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := r.replaceTargetsTx(ctx, tx, announcement.ID, userIDs, groupIDs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement; targets and read statuses cascade.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *AnnouncementRepository) replaceTargetsTx(ctx context.Context, tx *sqlx.Tx, announcementID string, userIDs, groupIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM announcement_target_users WHERE announcement_id = $1", announcementID); err != nil {
		return fmt.Errorf("clear target users: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM announcement_target_groups WHERE announcement_id = $1", announcementID); err != nil {
		return fmt.Errorf("clear target groups: %w", err)
	}
	for _, userID := range dedupe(userIDs) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO announcement_target_users (announcement_id, user_id) VALUES ($1, $2)", announcementID, userID); err != nil {
			return fmt.Errorf("insert target user: %w", err)
		}
	}
	for _, groupID := range dedupe(groupIDs) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO announcement_target_groups (announcement_id, group_id) VALUES ($1, $2)", announcementID, groupID); err != nil {
			return fmt.Errorf("insert target group: %w", err)
		}
	}
	return nil
}

type targetUserRow struct {
	AnnouncementID string `db:"announcement_id"`
	models.UserRef
}

type targetGroupRow struct {
	AnnouncementID string `db:"announcement_id"`
	models.GroupRef
}

// loadTargets fills TargetUsers and TargetGroups for every item with two batched queries.
func (r *AnnouncementRepository) loadTargets(ctx context.Context, items []models.Announcement) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i := range items {
		ids[i] = items[i].ID
		index[items[i].ID] = i
		items[i].TargetUsers = []models.UserRef{}
		items[i].TargetGroups = []models.GroupRef{}
	}

	const usersQuery = `SELECT tu.announcement_id, u.id, u.username
FROM announcement_target_users tu JOIN users u ON u.id = tu.user_id
WHERE tu.announcement_id = ANY($1) ORDER BY u.username`
	var userRows []targetUserRow
	if err := r.db.SelectContext(ctx, &userRows, usersQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load target users: %w", err)
	}
	for _, row := range userRows {
		if i, ok := index[row.AnnouncementID]; ok {
			items[i].TargetUsers = append(items[i].TargetUsers, row.UserRef)
		}
	}

	const groupsQuery = `SELECT tg.announcement_id, g.id, g.name
FROM announcement_target_groups tg JOIN groups g ON g.id = tg.group_id
WHERE tg.announcement_id = ANY($1) ORDER BY g.name`
	var groupRows []targetGroupRow
	if err := r.db.SelectContext(ctx, &groupRows, groupsQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load target groups: %w", err)
	}
	for _, row := range groupRows {
		if i, ok := index[row.AnnouncementID]; ok {
			items[i].TargetGroups = append(items[i].TargetGroups, row.GroupRef)
		}
	}
	return nil
}

// managedWhere builds the moderation filter with placeholders numbered from start.
func managedWhere(filter models.ManageFilter, start int) (string, []interface{}) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		where = append(where, fmt.Sprintf("a.author_id = $%d", start+len(args)-1))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := start + len(args) - 1
		where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.content ILIKE $%d)", n, n))
	}
	return strings.Join(where, " AND "), args
}

// likePattern wraps term for a substring ILIKE match, escaping wildcards.
func likePattern(term string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(strings.TrimSpace(term)) + "%"
}

func pageWindow(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
