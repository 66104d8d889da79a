// Package visibility holds the rule deciding which announcements a recipient
// may see. Allows/Visible evaluate it in memory for a single announcement;
// Predicate renders the same rule as a SQL condition for list queries.
package visibility

import (
	"fmt"
	"time"

	"github.com/noah-isme/noticeboard/internal/models"
)

// Viewer is a recipient together with the groups they belong to.
type Viewer struct {
	UserID   string
	GroupIDs []string
}

// Allows reports whether the targeting of a admits v. An announcement with no
// target users and no target groups is addressed to everyone.
func Allows(a *models.Announcement, v Viewer) bool {
	if len(a.TargetUsers) == 0 && len(a.TargetGroups) == 0 {
		return true
	}
	for _, u := range a.TargetUsers {
		if u.ID == v.UserID {
			return true
		}
	}
	if len(v.GroupIDs) == 0 {
		return false
	}
	member := make(map[string]struct{}, len(v.GroupIDs))
	for _, id := range v.GroupIDs {
		member[id] = struct{}{}
	}
	for _, g := range a.TargetGroups {
		if _, ok := member[g.ID]; ok {
			return true
		}
	}
	return false
}

// Visible combines the publish-time gate with Allows.
func Visible(a *models.Announcement, v Viewer, now time.Time) bool {
	return a.IsPublished(now) && Allows(a, v)
}

// Predicate renders the targeting rule for announcements aliased as alias,
// with the viewer id bound to the positional parameter $param. EXISTS keeps
// the result a set even when several of the viewer's groups match.
func Predicate(alias string, param int) string {
	return fmt.Sprintf(`((NOT EXISTS (SELECT 1 FROM announcement_target_users tu WHERE tu.announcement_id = %[1]s.id)
  AND NOT EXISTS (SELECT 1 FROM announcement_target_groups tg WHERE tg.announcement_id = %[1]s.id))
 OR EXISTS (SELECT 1 FROM announcement_target_users tu WHERE tu.announcement_id = %[1]s.id AND tu.user_id = $%[2]d)
 OR EXISTS (SELECT 1 FROM announcement_target_groups tg JOIN user_groups ug ON ug.group_id = tg.group_id
            WHERE tg.announcement_id = %[1]s.id AND ug.user_id = $%[2]d))`, alias, param)
}
