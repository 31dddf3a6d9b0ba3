// Package activity provides the activity log of view lifecycle events: who
// created, changed, duplicated or re-defaulted which view, and when.
package activity

import (
	"encoding/json"
	"time"
)

// Entry roles.
const (
	RoleSubject = "subject"
	RoleRelated = "related"
)

// Entry is one row of the activity log. One event yields an entry per view
// it touches.
type Entry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ViewUID    string          `json:"view_uid"`
	Role       string          `json:"role"`
	Scope      string          `json:"scope,omitempty"`
	Actor      string          `json:"actor,omitempty"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueryOptions controls filtering and pagination for activity queries.
type QueryOptions struct {
	ViewUID    string     // only entries for this view
	Scope      *string    // only entries in this scope; nil for every scope
	EventTypes []string   // filter to specific event types
	Since      *time.Time // inclusive
	Until      *time.Time // inclusive
	Limit      int        // max results (default: 100, max: 500)
	Cursor     string     // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for summary search.
type SearchOptions struct {
	Scope *string
	Since *time.Time
	Limit int // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions covering the last 30 days.
func DefaultQueryOptions() QueryOptions {
	since := time.Now().AddDate(0, 0, -30)
	return QueryOptions{
		Since: &since,
		Limit: 100,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: 20,
	}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}
