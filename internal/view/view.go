// Package view defines views, their filter and sort lists, and templates,
// together with the builder-side operations on them: sanitizing filters,
// instantiating a view from a template and keeping the default flag
// exclusive within a scope.
//
// The JSON encoding of these types is the contract shared with the builder
// UI and with stored view definitions; field names and enumerated values
// must not change.
package view

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// Combinator folds a predicate's verdict into the running result.
type Combinator string

const (
	And Combinator = "and"
	Or  Combinator = "or"
)

// Normalize maps the empty combinator to And.
func (c Combinator) Normalize() Combinator {
	if c == Or {
		return Or
	}
	return And
}

// Direction of a sort key.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Type is the renderer a view is meant for.
type Type string

const (
	TypeList     Type = "list"
	TypeBoard    Type = "board"
	TypeCalendar Type = "calendar"
	TypeTable    Type = "table"
	TypeTimeline Type = "timeline"
	TypeGallery  Type = "gallery"
)

// Valid reports whether t is a known view type.
func (t Type) Valid() bool {
	switch t {
	case TypeList, TypeBoard, TypeCalendar, TypeTable, TypeTimeline, TypeGallery:
		return true
	}
	return false
}

// Filter is one predicate of a view. Value holds raw JSON data and is
// decoded against the field type at evaluation time.
type Filter struct {
	ID       string             `json:"id"`
	Field    string             `json:"field"`
	Operator schema.OperatorKey `json:"operator"`
	Value    any                `json:"value"`
	Value2   any                `json:"value2,omitempty"`
	Logic    Combinator         `json:"logic,omitempty"`
}

// SortKey orders records by one field.
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Descending reports whether the key sorts high to low.
func (k SortKey) Descending() bool {
	return k.Direction == Desc
}

// DisplaySettings are renderer preferences. Keys the engine does not know
// are kept in Extra and written back unchanged. ShowCompleted and
// ShowSubtasks default to true when absent.
type DisplaySettings struct {
	ShowCompleted   *bool    `json:"show_completed,omitempty"`
	ShowSubtasks    *bool    `json:"show_subtasks,omitempty"`
	CompactMode     bool     `json:"compact_mode"`
	ShowEmptyGroups bool     `json:"show_empty_groups"`
	CardFields      []string `json:"card_fields,omitempty"`
	Columns         []string `json:"columns,omitempty"`

	Extra map[string]any `json:"-"`
}

var displayKeys = []string{"show_completed", "show_subtasks", "compact_mode", "show_empty_groups", "card_fields", "columns"}

// CompletedVisible reports whether completed records are shown.
func (d DisplaySettings) CompletedVisible() bool {
	return d.ShowCompleted == nil || *d.ShowCompleted
}

// SubtasksVisible reports whether subtasks are shown.
func (d DisplaySettings) SubtasksVisible() bool {
	return d.ShowSubtasks == nil || *d.ShowSubtasks
}

type displayAlias DisplaySettings

func (d DisplaySettings) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(displayAlias(d))
	if err != nil || len(d.Extra) == 0 {
		return known, err
	}
	merged := make(map[string]any, len(d.Extra)+len(displayKeys))
	for k, v := range d.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (d *DisplaySettings) UnmarshalJSON(b []byte) error {
	var a displayAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range displayKeys {
		delete(all, k)
	}
	*d = DisplaySettings(a)
	if len(all) > 0 {
		d.Extra = all
	} else {
		d.Extra = nil
	}
	return nil
}

// Clone returns a copy sharing no pointers, slices or maps with d.
func (d DisplaySettings) Clone() DisplaySettings {
	out := d
	out.ShowCompleted = cloneBool(d.ShowCompleted)
	out.ShowSubtasks = cloneBool(d.ShowSubtasks)
	out.CardFields = slices.Clone(d.CardFields)
	out.Columns = slices.Clone(d.Columns)
	if d.Extra != nil {
		out.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = cloneRaw(v)
		}
	}
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// View is a saved combination of filters, sorts, grouping and display
// preferences. A view owns its filter and sort lists.
type View struct {
	UID            string          `json:"uid"`
	Name           string          `json:"name"`
	ProjectUID     string          `json:"project_uid,omitempty"`
	ViewType       Type            `json:"view_type"`
	Filters        []Filter        `json:"filters"`
	Sorts          []SortKey       `json:"sorts"`
	GroupBy        string          `json:"group_by,omitempty"`
	Display        DisplaySettings `json:"display_settings"`
	IsDefault      bool            `json:"is_default"`
	IsVisibleInNav bool            `json:"is_visible_in_nav"`
	IsPublic       bool            `json:"is_public"`
	SortOrder      int             `json:"sort_order"`
	TemplateID     string          `json:"template_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Scope is the record scope of the view: a project uid, or "" for views
// over all tasks.
func (v View) Scope() string {
	return v.ProjectUID
}

// Clone deep-copies the view.
func (v View) Clone() View {
	out := v
	out.Filters = CloneFilters(v.Filters)
	out.Sorts = slices.Clone(v.Sorts)
	out.Display = v.Display.Clone()
	return out
}

// Validate checks the view against the registry: every filter and sort
// must name a known field and every operator must exist. Group keys are
// checked by the query engine.
func (v View) Validate(reg *schema.Registry) error {
	if v.Name == "" {
		return fmt.Errorf("view name is required")
	}
	if v.ViewType != "" && !v.ViewType.Valid() {
		return fmt.Errorf("unknown view type '%s'", v.ViewType)
	}
	if err := ValidateFilters(reg, v.Filters); err != nil {
		return err
	}
	for _, s := range v.Sorts {
		if _, err := reg.Field(s.Field); err != nil {
			return fmt.Errorf("sort: %w", err)
		}
		if s.Direction != "" && s.Direction != Asc && s.Direction != Desc {
			return fmt.Errorf("sort '%s': unknown direction '%s'", s.Field, s.Direction)
		}
	}
	return nil
}

// ValidateFilters checks field and operator keys. Operator/field type
// mismatches are not errors.
func ValidateFilters(reg *schema.Registry, filters []Filter) error {
	for _, f := range filters {
		if _, err := reg.Field(f.Field); err != nil {
			return fmt.Errorf("filter %s: %w", f.ID, err)
		}
		if _, err := reg.Operator(f.Operator); err != nil {
			return fmt.Errorf("filter %s: %w", f.ID, err)
		}
		if f.Logic != "" && f.Logic != And && f.Logic != Or {
			return fmt.Errorf("filter %s: unknown logic '%s'", f.ID, f.Logic)
		}
	}
	return nil
}

// CloneFilters deep-copies a filter list, including list values.
func CloneFilters(filters []Filter) []Filter {
	if filters == nil {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		f.Value = cloneRaw(f.Value)
		f.Value2 = cloneRaw(f.Value2)
		out[i] = f
	}
	return out
}

func cloneRaw(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneRaw(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = cloneRaw(item)
		}
		return out
	case []string:
		return slices.Clone(x)
	case []float64:
		return slices.Clone(x)
	case []int:
		return slices.Clone(x)
	}
	return v
}
