package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindTime
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the shapes a field or predicate value can
// take. The zero Value is Null. Values are immutable.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

func Null() Value { return Value{} }
func Text(s string) Value { return Value{kind: KindText, text: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }
func List(items ...Value) Value { return Value{kind: KindList, list: slices.Clone(items)} }

// Texts builds a list of text values.
func Texts(items ...string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = Text(s)
	}
	return Value{kind: KindList, list: list}
}

// TimePtr returns Time(*t), or Null when t is nil.
func TimePtr(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return Time(*t)
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Text() (string, bool) { return v.text, v.kind == KindText }
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// List returns the items of a list value, or nil.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return slices.Clone(v.list)
}

// Len is the item count of a list value and 0 otherwise.
func (v Value) Len() int {
	return len(v.list)
}

// IsEmpty treats null, blank text and empty lists as empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindList:
		return len(v.list) == 0
	default:
		return false
	}
}

// Equal compares kind and payload. Times compare as instants.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	}
	return false
}

// String formats the value for labels and logs.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Interface converts the value back to plain Go data as produced by
// encoding/json.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes without a field type: strings stay text and numbers
// stay numbers. Use DecodeValue when the field type is known.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded, err := decodeUntyped(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func decodeUntyped(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(x), nil
	case float64:
		return Number(x), nil
	case bool:
		return Bool(x), nil
	case []any:
		list := make([]Value, len(x))
		for i, item := range x {
			d, err := decodeUntyped(item)
			if err != nil {
				return Null(), err
			}
			list[i] = d
		}
		return Value{kind: KindList, list: list}, nil
	}
	return Null(), fmt.Errorf("unsupported value %T", raw)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp forms accepted in view definitions. Forms
// without an offset are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date '%s'", s)
}

// DecodeValue converts raw JSON-ish data into the Value variant dictated by
// the field type. Lists decode element-wise with the same rules. Offset-less
// timestamps are read in loc (UTC when nil).
func DecodeValue(raw any, ft FieldType, loc *time.Location) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case []any:
		return decodeList(x, ft, loc)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return decodeList(items, ft, loc)
	case []float64:
		items := make([]any, len(x))
		for i, n := range x {
			items[i] = n
		}
		return decodeList(items, ft, loc)
	case []int:
		items := make([]any, len(x))
		for i, n := range x {
			items[i] = n
		}
		return decodeList(items, ft, loc)
	}

	switch ft {
	case FieldText, FieldRelation:
		switch x := raw.(type) {
		case string:
			return Text(x), nil
		default:
			if n, ok := toNumber(raw); ok {
				return Text(strconv.FormatFloat(n, 'f', -1, 64)), nil
			}
		}
	case FieldNumber:
		if n, ok := toNumber(raw); ok {
			return Number(n), nil
		}
		if s, ok := raw.(string); ok {
			if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return Number(n), nil
			}
		}
	case FieldBoolean:
		switch x := raw.(type) {
		case bool:
			return Bool(x), nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return Bool(b), nil
			}
		}
	case FieldDate, FieldDateTime:
		switch x := raw.(type) {
		case time.Time:
			return Time(x), nil
		case string:
			t, err := ParseTime(x, loc)
			if err != nil {
				return Null(), err
			}
			return Time(t), nil
		default:
			// Epoch milliseconds, as browsers send them.
			if n, ok := toNumber(raw); ok {
				return Time(time.UnixMilli(int64(n))), nil
			}
		}
	case FieldSelect:
		if n, ok := toNumber(raw); ok {
			return Number(n), nil
		}
		if s, ok := raw.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return Number(n), nil
			}
			return Text(s), nil
		}
	case FieldMultiSelect:
		// Tag names stay text even when they look numeric.
		if s, ok := raw.(string); ok {
			return Text(s), nil
		}
		if n, ok := toNumber(raw); ok {
			return Number(n), nil
		}
	}
	return Null(), fmt.Errorf("cannot decode %T as %s", raw, ft)
}

func decodeList(items []any, ft FieldType, loc *time.Location) (Value, error) {
	list := make([]Value, len(items))
	for i, item := range items {
		if _, nested := item.([]any); nested {
			return Null(), fmt.Errorf("nested list in %s value", ft)
		}
		d, err := DecodeValue(item, ft, loc)
		if err != nil {
			return Null(), err
		}
		list[i] = d
	}
	return Value{kind: KindList, list: list}, nil
}

func toNumber(raw any) (float64, bool) {
	switch x := raw.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		n, err := x.Float64()
		return n, err == nil
	}
	return 0, false
}
