package view

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// duplicateSuffix is appended to the name of a duplicated view.
const duplicateSuffix = " 副本"

// collisionLayout formats the timestamp suffix of a colliding name.
const collisionLayout = "2006-01-02 15:04:05"

// NewFilterID returns a fresh predicate id.
func NewFilterID() string {
	return uuid.NewString()
}

// ── sanitize ────────────────────────────────────────────────────────────────

// Sanitize returns a copy of filters in which every predicate whose operator
// takes no value has Value and Value2 cleared, and every non-range predicate
// has Value2 cleared. Unknown operators are left untouched for the caller's
// validation to report. Sanitize is idempotent.
func Sanitize(reg *schema.Registry, filters []Filter) []Filter {
	out := CloneFilters(filters)
	for i := range out {
		op, err := reg.Operator(out[i].Operator)
		if err != nil {
			continue
		}
		if !op.ValueRequired {
			out[i].Value = nil
			out[i].Value2 = nil
		} else if op.Shape != schema.ShapePair {
			out[i].Value2 = nil
		}
	}
	return out
}

// SetField points the predicate at a new field, selects the field's first
// compatible operator and resets the values for it.
func (f *Filter) SetField(reg *schema.Registry, key string) error {
	field, err := reg.Field(key)
	if err != nil {
		return err
	}
	ops, err := reg.OperatorsFor(field.Key)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return fmt.Errorf("field '%s' has no operators", field.Key)
	}
	f.Field = field.Key
	f.Operator = ops[0].Key
	f.Value, f.Value2 = defaultValues(field, ops[0])
	return nil
}

// SetOperator switches the predicate's operator and resets the values to
// valid defaults for it.
func (f *Filter) SetOperator(reg *schema.Registry, key schema.OperatorKey) error {
	field, err := reg.Field(f.Field)
	if err != nil {
		return err
	}
	op, err := reg.Operator(key)
	if err != nil {
		return err
	}
	f.Operator = op.Key
	f.Value, f.Value2 = defaultValues(field, op)
	return nil
}

func defaultValues(field schema.Field, op schema.Operator) (any, any) {
	switch op.Shape {
	case schema.ShapeNone:
		return nil, nil
	case schema.ShapeList:
		return []any{}, nil
	case schema.ShapeScalar:
		if len(field.Options) > 0 {
			return field.Options[0].Value.Interface(), nil
		}
	}
	return nil, nil
}

// NewFilter builds a predicate on the field with builder defaults.
func NewFilter(reg *schema.Registry, field string) (Filter, error) {
	f := Filter{ID: NewFilterID(), Logic: And}
	if err := f.SetField(reg, field); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// ── instantiate ─────────────────────────────────────────────────────────────

// InstantiateOptions override template defaults on the derived view.
type InstantiateOptions struct {
	Name       string    // defaults to the template name
	ProjectUID string    // target scope
	Existing   []string  // names already used in the target scope
	Now        time.Time // clock for the collision suffix and timestamps
}

// Instantiate derives a new view from a template. Filters and sorts are
// deep-copied, so edits to the view never reach the template. The name is
// suffixed with a timestamp only when it collides with an existing name in
// the scope.
func Instantiate(reg *schema.Registry, t Template, opts InstantiateOptions) (View, error) {
	if err := t.Validate(reg); err != nil {
		return View{}, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.Name
	if name == "" {
		name = t.Name
	}

	tpl := t.Clone()
	v := View{
		UID:            uuid.NewString(),
		Name:           UniqueName(name, opts.Existing, now),
		ProjectUID:     opts.ProjectUID,
		ViewType:       tpl.ViewType,
		Filters:        Sanitize(reg, tpl.Filters),
		Sorts:          tpl.Sorts,
		GroupBy:        tpl.GroupBy,
		Display:        tpl.Display,
		IsVisibleInNav: true,
		TemplateID:     t.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if v.Filters == nil {
		v.Filters = []Filter{}
	}
	if v.Sorts == nil {
		v.Sorts = []SortKey{}
	}
	return v, nil
}

// InstantiateJSON decodes a template payload and instantiates it. A payload
// that fails to decode or validate yields no view at all.
func InstantiateJSON(reg *schema.Registry, data []byte, opts InstantiateOptions) (View, error) {
	t, err := DecodeTemplate(data, reg)
	if err != nil {
		return View{}, err
	}
	return Instantiate(reg, t, opts)
}

// UniqueName returns name unchanged unless it is in existing, in which case
// a timestamp suffix is appended, then a counter if that collides too.
func UniqueName(name string, existing []string, now time.Time) string {
	if !slices.Contains(existing, name) {
		return name
	}
	candidate := name + " " + now.Format(collisionLayout)
	for n := 2; slices.Contains(existing, candidate); n++ {
		candidate = fmt.Sprintf("%s %s (%d)", name, now.Format(collisionLayout), n)
	}
	return candidate
}

// Duplicate clones a view under a new uid with the duplicate suffix. The
// copy is private and never the default view.
func Duplicate(v View, existing []string, now time.Time) View {
	out := v.Clone()
	out.UID = uuid.NewString()
	out.Name = UniqueName(v.Name+duplicateSuffix, existing, now)
	out.IsDefault = false
	out.IsPublic = false
	for i := range out.Filters {
		out.Filters[i].ID = NewFilterID()
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return out
}

// ── default flag ────────────────────────────────────────────────────────────

// ApplyDefault makes the view with the given uid the only default among the
// views sharing its scope. Views in other scopes are untouched. It returns
// the uids whose flag changed, and false when uid is not in views.
func ApplyDefault(views []View, uid string) ([]string, bool) {
	idx := slices.IndexFunc(views, func(v View) bool { return v.UID == uid })
	if idx < 0 {
		return nil, false
	}
	scope := views[idx].Scope()
	var changed []string
	for i := range views {
		if views[i].Scope() != scope {
			continue
		}
		want := i == idx
		if views[i].IsDefault != want {
			views[i].IsDefault = want
			changed = append(changed, views[i].UID)
		}
	}
	return changed, true
}

// Names lists the view names, for collision checks.
func Names(views []View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}
