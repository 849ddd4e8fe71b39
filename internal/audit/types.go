package audit

import (
	"encoding/json"
	"time"
)

// Entry is an immutable record of one state-changing action. Entries are
// created once and only ever read back, filtered, and paginated.
type Entry struct {
	ID           string            `json:"id"`
	ActorID      string            `json:"actor_id,omitempty"` // empty for system actions
	ActorDisplay string            `json:"actor_display,omitempty"`
	ActorOrigin  string            `json:"actor_origin,omitempty"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Before       json.RawMessage   `json:"before,omitempty"`
	After        json.RawMessage   `json:"after,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Filter narrows a ledger query. Zero values match everything.
type Filter struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
}

// QueryResult is one page of entries, newest first.
type QueryResult struct {
	Entries []Entry `json:"logs"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
