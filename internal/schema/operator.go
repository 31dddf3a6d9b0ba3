package schema

// OperatorKey is the wire name of an operator as stored in view definitions.
type OperatorKey string

const (
	OpEquals    OperatorKey = "equals"
	OpNotEquals OperatorKey = "not_equals"

	OpContains    OperatorKey = "contains"
	OpNotContains OperatorKey = "not_contains"
	OpStartsWith  OperatorKey = "starts_with"
	OpEndsWith    OperatorKey = "ends_with"

	OpIsEmpty    OperatorKey = "is_empty"
	OpIsNotEmpty OperatorKey = "is_not_empty"

	OpGreaterThan        OperatorKey = "greater_than"
	OpGreaterThanOrEqual OperatorKey = "greater_than_or_equal"
	OpLessThan           OperatorKey = "less_than"
	OpLessThanOrEqual    OperatorKey = "less_than_or_equal"

	OpBetween    OperatorKey = "between"
	OpNotBetween OperatorKey = "not_between"

	OpIn    OperatorKey = "in"
	OpNotIn OperatorKey = "not_in"

	OpIsToday     OperatorKey = "is_today"
	OpIsYesterday OperatorKey = "is_yesterday"
	OpIsTomorrow  OperatorKey = "is_tomorrow"
	OpIsThisWeek  OperatorKey = "is_this_week"
	OpIsLastWeek  OperatorKey = "is_last_week"
	OpIsNextWeek  OperatorKey = "is_next_week"
	OpIsThisMonth OperatorKey = "is_this_month"
	OpIsLastMonth OperatorKey = "is_last_month"
	OpIsNextMonth OperatorKey = "is_next_month"
	OpIsOverdue   OperatorKey = "is_overdue"
	OpHasNoDate   OperatorKey = "has_no_date"

	OpIsTrue  OperatorKey = "is_true"
	OpIsFalse OperatorKey = "is_false"
)

// Family groups operators that share an evaluation strategy.
type Family int

const (
	FamilyEquality Family = iota
	FamilyText
	FamilyEmptiness
	FamilyOrdering
	FamilyRange
	FamilyMembership
	FamilyRelativeDate
	FamilyBoolean
)

func (f Family) String() string {
	switch f {
	case FamilyEquality:
		return "equality"
	case FamilyText:
		return "text"
	case FamilyEmptiness:
		return "emptiness"
	case FamilyOrdering:
		return "ordering"
	case FamilyRange:
		return "range"
	case FamilyMembership:
		return "membership"
	case FamilyRelativeDate:
		return "relative_date"
	case FamilyBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Shape is the value shape an operator expects.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeScalar
	ShapeString
	ShapeOrdered
	ShapePair
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeScalar:
		return "scalar"
	case ShapeString:
		return "string"
	case ShapeOrdered:
		return "ordered"
	case ShapePair:
		return "pair"
	case ShapeList:
		return "list"
	default:
		return "unknown"
	}
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Operator describes a comparison, membership, relative-date, emptiness or
// boolean test.
type Operator struct {
	Key           OperatorKey  `json:"key"`
	Label         string       `json:"label"`
	Family        Family       `json:"family"`
	ValueRequired bool         `json:"value_required"`
	Shape         Shape        `json:"value_shape"`
	Supported     FieldTypeSet `json:"supported_field_types"`
}

// Supports reports whether the operator may be paired with ft.
func (o Operator) Supports(ft FieldType) bool {
	return o.Supported.Has(ft)
}

// Negated reports whether the operator is the negation of a positive form.
func (o Operator) Negated() bool {
	switch o.Key {
	case OpNotEquals, OpNotContains, OpNotBetween, OpNotIn:
		return true
	}
	return false
}

// DefaultOperators returns the operator catalogue in builder order.
func DefaultOperators() []Operator {
	var (
		equality = TypeSet(FieldText, FieldSelect, FieldRelation)
		text     = TypeSet(FieldText)
		empty    = TypeSet(FieldText, FieldDate, FieldDateTime)
		ordered  = TypeSet(FieldNumber, FieldDate, FieldDateTime)
		member   = TypeSet(FieldSelect, FieldMultiSelect)
		dates    = TypeSet(FieldDate, FieldDateTime)
		boolean  = TypeSet(FieldBoolean)
	)
	op := func(key OperatorKey, label string, fam Family, shape Shape, types FieldTypeSet) Operator {
		return Operator{Key: key, Label: label, Family: fam, ValueRequired: shape != ShapeNone, Shape: shape, Supported: types}
	}
	return []Operator{
		op(OpEquals, "等于", FamilyEquality, ShapeScalar, equality),
		op(OpNotEquals, "不等于", FamilyEquality, ShapeScalar, equality),
		op(OpContains, "包含", FamilyText, ShapeString, text),
		op(OpNotContains, "不包含", FamilyText, ShapeString, text),
		op(OpStartsWith, "开头是", FamilyText, ShapeString, text),
		op(OpEndsWith, "结尾是", FamilyText, ShapeString, text),
		op(OpIsEmpty, "为空", FamilyEmptiness, ShapeNone, empty),
		op(OpIsNotEmpty, "不为空", FamilyEmptiness, ShapeNone, empty),

		op(OpGreaterThan, "大于", FamilyOrdering, ShapeOrdered, ordered),
		op(OpGreaterThanOrEqual, "大于等于", FamilyOrdering, ShapeOrdered, ordered),
		op(OpLessThan, "小于", FamilyOrdering, ShapeOrdered, ordered),
		op(OpLessThanOrEqual, "小于等于", FamilyOrdering, ShapeOrdered, ordered),
		op(OpBetween, "介于", FamilyRange, ShapePair, ordered),
		op(OpNotBetween, "不在范围", FamilyRange, ShapePair, ordered),

		op(OpIn, "属于", FamilyMembership, ShapeList, member),
		op(OpNotIn, "不属于", FamilyMembership, ShapeList, member),

		op(OpIsToday, "是今天", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsYesterday, "是昨天", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsTomorrow, "是明天", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsThisWeek, "是本周", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsLastWeek, "是上周", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsNextWeek, "是下周", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsThisMonth, "是本月", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsLastMonth, "是上月", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsNextMonth, "是下月", FamilyRelativeDate, ShapeNone, dates),
		op(OpIsOverdue, "已逾期", FamilyRelativeDate, ShapeNone, dates),
		op(OpHasNoDate, "无日期", FamilyRelativeDate, ShapeNone, dates),

		op(OpIsTrue, "为真", FamilyBoolean, ShapeNone, boolean),
		op(OpIsFalse, "为假", FamilyBoolean, ShapeNone, boolean),
	}
}
