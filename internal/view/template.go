package view

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// ErrDecodeTemplate marks a template payload that could not be decoded or
// validated.
var ErrDecodeTemplate = errors.New("invalid template")

// Category buckets templates in the gallery.
type Category string

const (
	CategoryProductivity Category = "productivity"
	CategoryProject      Category = "project"
	CategoryPersonal     Category = "personal"
	CategoryTeam         Category = "team"
	CategoryCustom       Category = "custom"
)

// Template is an immutable preset used to seed new views.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	ViewType    Type            `json:"view_type"`
	Filters     []Filter        `json:"filters"`
	Sorts       []SortKey       `json:"sorts"`
	GroupBy     string          `json:"group_by,omitempty"`
	Display     DisplaySettings `json:"display_settings"`
	Tags        []string        `json:"tags,omitempty"`
}

// Clone deep-copies the template.
func (t Template) Clone() Template {
	out := t
	out.Filters = CloneFilters(t.Filters)
	out.Sorts = append([]SortKey(nil), t.Sorts...)
	out.Display = t.Display.Clone()
	out.Tags = append([]string(nil), t.Tags...)
	return out
}

// Validate checks the template's filters and sorts against the registry.
func (t Template) Validate(reg *schema.Registry) error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrDecodeTemplate)
	}
	v := View{Name: t.Name, ViewType: t.ViewType, Filters: t.Filters, Sorts: t.Sorts}
	if err := v.Validate(reg); err != nil {
		return fmt.Errorf("%w '%s': %w", ErrDecodeTemplate, t.ID, err)
	}
	return nil
}

// DecodeTemplate strictly decodes and validates a template payload.
// Unknown JSON keys are rejected.
func DecodeTemplate(data []byte, reg *schema.Registry) (Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var t Template
	if err := dec.Decode(&t); err != nil {
		return Template{}, fmt.Errorf("%w: %w", ErrDecodeTemplate, err)
	}
	normalizeNumbers(t.Filters)
	if err := t.Validate(reg); err != nil {
		return Template{}, err
	}
	return t, nil
}

// normalizeNumbers turns json.Number values into float64 so decoded
// templates compare equal to ones decoded without UseNumber.
func normalizeNumbers(filters []Filter) {
	for i := range filters {
		filters[i].Value = plainNumber(filters[i].Value)
		filters[i].Value2 = plainNumber(filters[i].Value2)
	}
}

func plainNumber(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = plainNumber(x[i])
		}
	}
	return v
}
