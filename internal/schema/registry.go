// Package schema provides the field and operator registry for task views.
//
// The registry is built once at process start and is read-only afterwards.
// It is consumed by the view builder (field and operator pickers), the
// query engine (validation and value decoding) and the HTTP API.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldType classifies how the engine treats a field for operator
// compatibility and value decoding.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumber
	FieldBoolean
	FieldDate
	FieldDateTime
	FieldSelect
	FieldMultiSelect
	FieldRelation
)

var fieldTypeNames = [...]string{
	FieldText:        "text",
	FieldNumber:      "number",
	FieldBoolean:     "boolean",
	FieldDate:        "date",
	FieldDateTime:    "datetime",
	FieldSelect:      "select",
	FieldMultiSelect: "multiselect",
	FieldRelation:    "relation",
}

// String returns the wire name of the field type.
func (ft FieldType) String() string {
	if ft < 0 || int(ft) >= len(fieldTypeNames) {
		return "unknown"
	}
	return fieldTypeNames[ft]
}

// ParseFieldType is the inverse of String.
func ParseFieldType(s string) (FieldType, error) {
	for i, name := range fieldTypeNames {
		if name == s {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field type '%s'", s)
}

// Temporal returns true for date and datetime fields.
func (ft FieldType) Temporal() bool {
	return ft == FieldDate || ft == FieldDateTime
}

// Comparable returns true if the field type supports ordering operators.
func (ft FieldType) Comparable() bool {
	return ft == FieldNumber || ft.Temporal()
}

func (ft FieldType) MarshalText() ([]byte, error) {
	return []byte(ft.String()), nil
}

func (ft *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*ft = parsed
	return nil
}

// FieldTypeSet is a bitset of field types. It is the compatibility table
// entry of an operator.
type FieldTypeSet uint16

// TypeSet builds a set from the given types.
func TypeSet(types ...FieldType) FieldTypeSet {
	var s FieldTypeSet
	for _, t := range types {
		s |= 1 << uint(t)
	}
	return s
}

// Has reports whether ft is in the set.
func (s FieldTypeSet) Has(ft FieldType) bool {
	return s&(1<<uint(ft)) != 0
}

// Types returns the members in declaration order.
func (s FieldTypeSet) Types() []FieldType {
	var out []FieldType
	for i := range fieldTypeNames {
		if s.Has(FieldType(i)) {
			out = append(out, FieldType(i))
		}
	}
	return out
}

func (s FieldTypeSet) MarshalJSON() ([]byte, error) {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return json.Marshal(names)
}

// Record is the engine's only view of a task. Implementations return Null
// for absent values and must not change between calls.
type Record interface {
	Value(key string) Value
	Completed() bool
}

// ComputeFunc derives a field value from the record and the current instant.
type ComputeFunc func(r Record, now time.Time) Value

// Option is one choice of a select field. Name is the symbolic constant a
// view may use in place of the stored value, e.g. "HIGH".
type Option struct {
	Value Value  `json:"value"`
	Label string `json:"label"`
	Name  string `json:"name,omitempty"`
}

// Field describes a single filterable, sortable or groupable attribute.
type Field struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Options []Option  `json:"options,omitempty"`

	// Aliases are legacy keys accepted on lookup (e.g. "project__name").
	Aliases []string `json:"-"`

	// Computed is non-nil for fields derived at evaluation time.
	Computed ComputeFunc `json:"-"`
}

// ValueOf returns the value of f on r as seen at instant now.
func (f Field) ValueOf(r Record, now time.Time) Value {
	if f.Computed != nil {
		return f.Computed(r, now)
	}
	return r.Value(f.Key)
}

// OptionLabel returns the label of the option equal to v.
func (f Field) OptionLabel(v Value) (string, bool) {
	for _, o := range f.Options {
		if o.Value.Equal(v) {
			return o.Label, true
		}
	}
	return "", false
}

// ResolveOption maps option names and labels in v to option values. Names
// match case-insensitively, labels exactly. Lists resolve element-wise and
// anything that names no option is returned unchanged.
func (f Field) ResolveOption(v Value) Value {
	if len(f.Options) == 0 {
		return v
	}
	if v.Kind() == KindList {
		items := v.List()
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = f.ResolveOption(item)
		}
		return List(out...)
	}
	s, ok := v.Text()
	if !ok {
		return v
	}
	for _, o := range f.Options {
		if (o.Name != "" && strings.EqualFold(o.Name, s)) || o.Label == s {
			return o.Value
		}
	}
	return v
}

// Registry holds field and operator metadata. It is safe for concurrent
// read access once built.
type Registry struct {
	fields     map[string]*Field
	fieldOrder []string
	aliases    map[string]string
	operators  map[OperatorKey]*Operator
	opOrder    []OperatorKey
}

// NewRegistry builds a registry from fields and operators in declared order.
// Duplicate keys are rejected.
func NewRegistry(fields []Field, operators []Operator) (*Registry, error) {
	r := &Registry{
		fields:    make(map[string]*Field, len(fields)),
		aliases:   make(map[string]string),
		operators: make(map[OperatorKey]*Operator, len(operators)),
	}
	for i := range fields {
		f := fields[i]
		if _, dup := r.fields[f.Key]; dup {
			return nil, fmt.Errorf("duplicate field '%s'", f.Key)
		}
		r.fields[f.Key] = &f
		r.fieldOrder = append(r.fieldOrder, f.Key)
		for _, a := range f.Aliases {
			r.aliases[a] = f.Key
		}
	}
	for i := range operators {
		op := operators[i]
		if _, dup := r.operators[op.Key]; dup {
			return nil, fmt.Errorf("duplicate operator '%s'", op.Key)
		}
		r.operators[op.Key] = &op
		r.opOrder = append(r.opOrder, op.Key)
	}
	return r, nil
}

// Fields returns every field in declared order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fieldOrder))
	for i, k := range r.fieldOrder {
		out[i] = *r.fields[k]
	}
	return out
}

// Field resolves a field key or legacy alias.
func (r *Registry) Field(key string) (Field, error) {
	if canon, ok := r.aliases[key]; ok {
		key = canon
	}
	f, ok := r.fields[key]
	if !ok {
		return Field{}, &LookupError{
			Kind:       ErrUnknownField,
			Key:        key,
			Suggestion: suggestFrom(key, r.fieldOrder, 3),
		}
	}
	return *f, nil
}

// Operator resolves an operator key.
func (r *Registry) Operator(key OperatorKey) (Operator, error) {
	op, ok := r.operators[key]
	if !ok {
		names := make([]string, len(r.opOrder))
		for i, k := range r.opOrder {
			names[i] = string(k)
		}
		return Operator{}, &LookupError{
			Kind:       ErrUnknownOperator,
			Key:        string(key),
			Suggestion: suggestFrom(string(key), names, 3),
		}
	}
	return *op, nil
}

// Operators returns every operator in declared order.
func (r *Registry) Operators() []Operator {
	out := make([]Operator, len(r.opOrder))
	for i, k := range r.opOrder {
		out[i] = *r.operators[k]
	}
	return out
}

// OperatorsFor returns the operators legal against the field, in declared
// order. The first entry is the builder's default selection.
func (r *Registry) OperatorsFor(key string) ([]Operator, error) {
	f, err := r.Field(key)
	if err != nil {
		return nil, err
	}
	var out []Operator
	for _, k := range r.opOrder {
		if op := r.operators[k]; op.Supports(f.Type) {
			out = append(out, *op)
		}
	}
	return out, nil
}

// Supports reports whether op may be paired with a field of type ft.
// Unknown operators support nothing.
func (r *Registry) Supports(op OperatorKey, ft FieldType) bool {
	o, ok := r.operators[op]
	return ok && o.Supports(ft)
}
