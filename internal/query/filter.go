package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/view"
)

// predicate is a filter resolved against the registry with its values
// decoded by field type.
type predicate struct {
	field  schema.Field
	op     schema.Operator
	logic  view.Combinator
	value  schema.Value
	value2 schema.Value

	never bool // operator unsupported by the field type, or value undecodable
	skip  bool // value-requiring operator without a value
}

// Plan is a compiled filter list. It holds no per-evaluation state and can
// be matched against any number of records.
type Plan struct {
	preds []predicate
	loc   *time.Location
}

// Compile resolves field and operator keys and decodes predicate values.
// Unknown keys are errors. An operator the field type does not support, or
// a value that cannot be decoded for the field, compiles to a predicate that
// never matches. Stored values of operators that take none are ignored.
func (e *Engine) Compile(filters []view.Filter) (*Plan, error) {
	p := &Plan{preds: make([]predicate, 0, len(filters)), loc: e.loc}
	for _, f := range filters {
		field, err := e.reg.Field(f.Field)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.ID, err)
		}
		op, err := e.reg.Operator(f.Operator)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.ID, err)
		}
		pr := predicate{field: field, op: op, logic: f.Logic.Normalize()}
		switch {
		case !op.Supports(field.Type):
			pr.never = true
		case op.ValueRequired:
			pr.decode(f, e.loc)
		}
		p.preds = append(p.preds, pr)
	}
	return p, nil
}

func (pr *predicate) decode(f view.Filter, loc *time.Location) {
	if f.Value == nil || (pr.op.Shape == schema.ShapePair && f.Value2 == nil) {
		pr.skip = true
		return
	}
	v, err := schema.DecodeValue(f.Value, pr.field.Type, loc)
	if err != nil {
		pr.never = true
		return
	}
	v = pr.field.ResolveOption(v)
	switch pr.op.Shape {
	case schema.ShapeList:
		if v.Kind() != schema.KindList {
			v = schema.List(v)
		}
	case schema.ShapeString:
		if v.Kind() != schema.KindText {
			pr.never = true
		}
	default:
		if v.Kind() == schema.KindList {
			pr.never = true
		}
	}
	pr.value = v

	if pr.op.Shape == schema.ShapePair {
		v2, err := schema.DecodeValue(f.Value2, pr.field.Type, loc)
		if err != nil || v2.Kind() == schema.KindList {
			pr.never = true
			return
		}
		pr.value2 = pr.field.ResolveOption(v2)
	}
}

// Match folds the predicates left to right. The first participating
// predicate seeds the result; each later one combines with the accumulated
// result through its own logic. There is no precedence between and/or.
// An empty plan matches everything.
func (p *Plan) Match(r schema.Record, now time.Time) bool {
	now = now.In(p.loc)
	acc, seeded := false, false
	for i := range p.preds {
		pr := &p.preds[i]
		if pr.skip {
			continue
		}
		verdict := pr.eval(r, now, p.loc)
		switch {
		case !seeded:
			acc, seeded = verdict, true
		case pr.logic == view.Or:
			acc = acc || verdict
		default:
			acc = acc && verdict
		}
	}
	return !seeded || acc
}

// Len is the number of predicates, skipped ones included.
func (p *Plan) Len() int { return len(p.preds) }

// Evaluate reports whether the record satisfies the filter list.
func (e *Engine) Evaluate(r schema.Record, filters []view.Filter) (bool, error) {
	plan, err := e.Compile(filters)
	if err != nil {
		return false, err
	}
	return plan.Match(r, e.Now()), nil
}

// EvaluateFilters returns the records satisfying the filter list, in input
// order.
func (e *Engine) EvaluateFilters(records []schema.Record, filters []view.Filter) ([]schema.Record, error) {
	plan, err := e.Compile(filters)
	if err != nil {
		return nil, err
	}
	now := e.Now()
	out := make([]schema.Record, 0, len(records))
	for _, r := range records {
		if plan.Match(r, now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (pr *predicate) eval(r schema.Record, now time.Time, loc *time.Location) bool {
	if pr.never {
		return false
	}
	got := pr.field.ValueOf(r, now)
	ok := pr.positive(got, r, now, loc)
	if pr.op.Negated() {
		return !ok
	}
	return ok
}

// positive evaluates the operator's positive form; negated operators invert
// the result, so an absent value satisfies them.
func (pr *predicate) positive(got schema.Value, r schema.Record, now time.Time, loc *time.Location) bool {
	ft := pr.field.Type
	switch pr.op.Family {
	case schema.FamilyEquality:
		return got.Equal(pr.value)

	case schema.FamilyText:
		s, ok := got.Text()
		if !ok {
			return false
		}
		needle, _ := pr.value.Text()
		s, needle = fold(s), fold(needle)
		switch pr.op.Key {
		case schema.OpStartsWith:
			return strings.HasPrefix(s, needle)
		case schema.OpEndsWith:
			return strings.HasSuffix(s, needle)
		default:
			return strings.Contains(s, needle)
		}

	case schema.FamilyEmptiness:
		if pr.op.Key == schema.OpIsEmpty {
			return got.IsEmpty()
		}
		return !got.IsEmpty()

	case schema.FamilyOrdering:
		c, ok := compareOrdered(ft, got, pr.value, loc)
		if !ok {
			return false
		}
		switch pr.op.Key {
		case schema.OpGreaterThan:
			return c > 0
		case schema.OpGreaterThanOrEqual:
			return c >= 0
		case schema.OpLessThan:
			return c < 0
		default:
			return c <= 0
		}

	case schema.FamilyRange:
		lo, ok1 := compareOrdered(ft, got, pr.value, loc)
		hi, ok2 := compareOrdered(ft, got, pr.value2, loc)
		return ok1 && ok2 && lo >= 0 && hi <= 0

	case schema.FamilyMembership:
		set := pr.value.List()
		if ft == schema.FieldMultiSelect {
			for _, item := range got.List() {
				if slices.ContainsFunc(set, item.Equal) {
					return true
				}
			}
			return false
		}
		if got.IsNull() {
			return false
		}
		return slices.ContainsFunc(set, got.Equal)

	case schema.FamilyRelativeDate:
		return matchRelative(pr.op.Key, ft, got, r, now, loc)

	case schema.FamilyBoolean:
		b, ok := got.Bool()
		if !ok {
			return false
		}
		return b == (pr.op.Key == schema.OpIsTrue)
	}
	return false
}

// compareOrdered compares numbers, or times at day granularity for date
// fields and full precision for datetime fields. Null or mismatched kinds
// are not comparable.
func compareOrdered(ft schema.FieldType, a, b schema.Value, loc *time.Location) (int, bool) {
	if an, ok := a.Number(); ok {
		bn, ok := b.Number()
		if !ok {
			return 0, false
		}
		return cmp.Compare(an, bn), true
	}
	at, ok := a.Time()
	if !ok {
		return 0, false
	}
	bt, ok := b.Time()
	if !ok {
		return 0, false
	}
	if ft == schema.FieldDate {
		return cmp.Compare(schema.DayOf(at, loc), schema.DayOf(bt, loc)), true
	}
	return at.Compare(bt), true
}
