package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/taskviews/internal/view"
)

// Event types.
const (
	ViewCreated        = "view_created"
	ViewUpdated        = "view_updated"
	ViewDeleted        = "view_deleted"
	ViewDuplicated     = "view_duplicated"
	ViewInstantiated   = "view_instantiated"
	ViewDefaultChanged = "view_default_changed"
)

// DomainEvent carries the canonical shape of every view lifecycle event.
// Views lists the affected view uids; the first is the subject.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	Scope      string
	Views      []string
	Actor      string
	Summary    string
	Payload    json.RawMessage
}

// Subject is the uid of the view the event is about.
func (e DomainEvent) Subject() string {
	if len(e.Views) == 0 {
		return ""
	}
	return e.Views[0]
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// viewPayload is the payload of events that carry a view definition.
type viewPayload struct {
	Name       string    `json:"name"`
	ViewType   view.Type `json:"view_type"`
	Filters    int       `json:"filters"`
	Sorts      int       `json:"sorts"`
	GroupBy    string    `json:"group_by,omitempty"`
	TemplateID string    `json:"template_id,omitempty"`
	SourceUID  string    `json:"source_uid,omitempty"`
}

func payloadOf(v view.View) viewPayload {
	return viewPayload{
		Name:       v.Name,
		ViewType:   v.ViewType,
		Filters:    len(v.Filters),
		Sorts:      len(v.Sorts),
		GroupBy:    v.GroupBy,
		TemplateID: v.TemplateID,
	}
}

func newEvent(eventType string, v view.View, actor, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  eventType,
		OccurredAt: time.Now(),
		Scope:      v.ProjectUID,
		Views:      []string{v.UID},
		Actor:      actor,
		Summary:    summary,
		Payload:    mustJSON(payload),
	}
}

func NewViewCreated(v view.View, actor string) DomainEvent {
	return newEvent(ViewCreated, v, actor, fmt.Sprintf("View '%s' created", v.Name), payloadOf(v))
}

func NewViewUpdated(v view.View, actor string) DomainEvent {
	return newEvent(ViewUpdated, v, actor, fmt.Sprintf("View '%s' updated", v.Name), payloadOf(v))
}

func NewViewDeleted(v view.View, actor string) DomainEvent {
	return newEvent(ViewDeleted, v, actor, fmt.Sprintf("View '%s' deleted", v.Name), payloadOf(v))
}

func NewViewInstantiated(v view.View, actor string) DomainEvent {
	return newEvent(ViewInstantiated, v, actor,
		fmt.Sprintf("View '%s' created from template %s", v.Name, v.TemplateID), payloadOf(v))
}

// NewViewDuplicated names the copy as subject and the source as related.
func NewViewDuplicated(src, dup view.View, actor string) DomainEvent {
	p := payloadOf(dup)
	p.SourceUID = src.UID
	evt := newEvent(ViewDuplicated, dup, actor, fmt.Sprintf("View '%s' duplicated as '%s'", src.Name, dup.Name), p)
	evt.Views = append(evt.Views, src.UID)
	return evt
}

// NewDefaultChanged lists the new default first, then every view whose flag
// was cleared.
func NewDefaultChanged(v view.View, cleared []string, actor string) DomainEvent {
	evt := newEvent(ViewDefaultChanged, v, actor, fmt.Sprintf("View '%s' set as default", v.Name), payloadOf(v))
	for _, uid := range cleared {
		if uid != v.UID {
			evt.Views = append(evt.Views, uid)
		}
	}
	return evt
}
