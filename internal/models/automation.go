package models

// Automation is a scheduled job acting on a set of equipment.
type Automation struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"` // six-field cron expression
	Enabled  bool   `json:"enabled"`
}

// TargetType names the kind of equipment an automation acts on.
type TargetType string

const (
	TargetDevice TargetType = "device"
	TargetLight  TargetType = "light"
)

// TargetKey identifies a piece of equipment. An owner holds at most one
// association per key.
type TargetKey struct {
	Type TargetType `json:"target_type"`
	ID   int        `json:"target_id"`
}

// ActionMeta carries what the automation does to the target, e.g. {"power": true}.
type ActionMeta map[string]any

// Target is a desired association member before it exists server-side.
type Target struct {
	TargetKey
	Action ActionMeta `json:"action,omitempty"`
}

// Association links an automation (owner) to a target.
type Association struct {
	ID      int `json:"id"`
	OwnerID int `json:"automation_id"`
	TargetKey
	Action ActionMeta `json:"action,omitempty"`
}

// Key returns the target identity of the association.
func (a Association) Key() TargetKey { return a.TargetKey }
