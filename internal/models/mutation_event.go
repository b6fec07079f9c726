package models

import "time"

// MutationEvent is a journal entry for one finished optimistic mutation.
type MutationEvent struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	EntityKind string    `json:"entity_kind"` // device | light
	EntityID   int       `json:"entity_id"`
	Attribute  string    `json:"attribute"`
	Outcome    string    `json:"outcome"` // confirmed | rolled_back | indeterminate
	Error      string    `json:"error,omitempty"`
	Metadata   any       `json:"metadata,omitempty"`
}
