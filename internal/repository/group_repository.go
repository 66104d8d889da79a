package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/noticeboard/internal/models"
)

// GroupRepository covers groups, memberships and the capabilities granted through them.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns groups for the recipient picker, ordered by name.
func (r *GroupRepository) List(ctx context.Context, filter models.DirectoryFilter) ([]models.GroupRef, int, error) {
	where := "1=1"
	var args []interface{}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, likePattern(filter.Search))
		where = "name ILIKE $1"
	}
	size, offset := pageWindow(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT id, name FROM groups WHERE %s ORDER BY name LIMIT %d OFFSET %d", where, size, offset)
	var groups []models.GroupRef
	if err := r.db.SelectContext(ctx, &groups, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM groups WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// IDsForUser returns the ids of every group the user belongs to.
func (r *GroupRepository) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT group_id FROM user_groups WHERE user_id = $1", userID); err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	return ids, nil
}

// CountExisting returns how many of ids belong to existing groups.
func (r *GroupRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM groups WHERE id::text = ANY($1)", pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return count, nil
}

// CapabilitiesForUser returns the distinct capabilities granted through the user's groups.
func (r *GroupRepository) CapabilitiesForUser(ctx context.Context, userID string) ([]models.Capability, error) {
	const query = `SELECT DISTINCT gc.action, gc.resource
FROM group_capabilities gc
JOIN user_groups ug ON ug.group_id = gc.group_id
WHERE ug.user_id = $1
ORDER BY gc.resource, gc.action`
	var caps []models.Capability
	if err := r.db.SelectContext(ctx, &caps, query, userID); err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	return caps, nil
}

// Ensure returns the id of the named group, creating it when missing.
func (r *GroupRepository) Ensure(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, "SELECT id FROM groups WHERE name = $1", name)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("find group: %w", err)
	}
	const insert = `INSERT INTO groups (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`
	if err := r.db.GetContext(ctx, &id, insert, uuid.NewString(), name); err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return id, nil
}

// AddMember puts the user in the group; existing memberships are kept.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	const query = `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// Grant attaches a capability to the group; existing grants are kept.
func (r *GroupRepository) Grant(ctx context.Context, groupID string, capability models.Capability) error {
	const query = `INSERT INTO group_capabilities (group_id, action, resource) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, string(capability.Action), string(capability.Resource)); err != nil {
		return fmt.Errorf("grant capability: %w", err)
	}
	return nil
}
