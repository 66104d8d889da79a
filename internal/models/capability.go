package models

// Action is a verb a capability grants.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Resource names the kind of object a capability applies to.
type Resource string

const (
	ResourceAnnouncement Resource = "announcement"
	ResourceCategory     Resource = "category"
	ResourceUser         Resource = "user"
	ResourceGroup        Resource = "group"
)

// Capability is a single (action, resource) grant held through a group.
type Capability struct {
	Action   Action   `db:"action" json:"action"`
	Resource Resource `db:"resource" json:"resource"`
}

// Key renders the capability as "resource:action".
func (c Capability) Key() string {
	return string(c.Resource) + ":" + string(c.Action)
}
