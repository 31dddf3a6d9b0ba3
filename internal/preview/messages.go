package preview

import (
	"encoding/json"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/view"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server messages.
type ClientMessage struct {
	Type string          `json:"type"` // "draft", "add_filter", "set_field", "set_operator", "set_value", "remove_filter", "operators", "ping"
	ID   string          `json:"id"`   // client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// DraftData replaces the whole draft.
type DraftData struct {
	View view.View `json:"view"`
}

// FilterData addresses one filter row of the draft.
type FilterData struct {
	FilterID string             `json:"filter_id,omitempty"`
	Field    string             `json:"field,omitempty"`
	Operator schema.OperatorKey `json:"operator,omitempty"`
	Value    any                `json:"value,omitempty"`
	Value2   any                `json:"value2,omitempty"`
	Logic    view.Combinator    `json:"logic,omitempty"`
}

// OperatorsData asks for the operators applicable to a field.
type OperatorsData struct {
	Field string `json:"field"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client messages.
type ServerMessage struct {
	Type      string `json:"type"` // "session", "draft", "meta", "bucket", "done", "operators", "error", "pong"
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// SessionData is sent once after the socket opens.
type SessionData struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
}

// MetaData precedes the buckets of a materialized draft.
type MetaData struct {
	Total  int      `json:"total"`
	Keys   []string `json:"keys"`
	Labels []string `json:"labels"`
}

// BucketData carries one bucket. Records are capped at the configured
// limit; Count is the full bucket size.
type BucketData struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Count     int             `json:"count"`
	Records   []schema.Record `json:"records"`
	Truncated bool            `json:"truncated,omitempty"`
}

// DoneData signals the end of one materialization.
type DoneData struct {
	Total   int    `json:"total"`
	Elapsed string `json:"elapsed"`
}

// OperatorsResult lists the operators a field accepts.
type OperatorsResult struct {
	Field     string            `json:"field"`
	Operators []schema.Operator `json:"operators"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
