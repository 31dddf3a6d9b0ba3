package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Field{
		{Key: "status", Label: "状态", Type: FieldSelect, Options: []Option{
			{Value: Number(0), Label: "待分配"},
			{Value: Number(1), Label: "待办"},
		}},
		{Key: "title", Label: "标题", Type: FieldText},
		{Key: "project", Label: "项目", Type: FieldRelation, Aliases: []string{"project__name"}},
		{Key: "due_date", Label: "截止日期", Type: FieldDate},
		{Key: "is_completed", Label: "是否完成", Type: FieldBoolean},
		{Key: "tags", Label: "标签", Type: FieldMultiSelect},
	}, DefaultOperators())
	require.NoError(t, err)
	return reg
}

func keys(ops []Operator) []OperatorKey {
	out := make([]OperatorKey, len(ops))
	for i, op := range ops {
		out[i] = op.Key
	}
	return out
}

func TestRegistry_FieldOrder(t *testing.T) {
	reg := testRegistry(t)
	var got []string
	for _, f := range reg.Fields() {
		got = append(got, f.Key)
	}
	assert.Equal(t, []string{"status", "title", "project", "due_date", "is_completed", "tags"}, got)
}

func TestRegistry_OperatorsFor(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		field string
		want  []OperatorKey
	}{
		{"status", []OperatorKey{OpEquals, OpNotEquals, OpIn, OpNotIn}},
		{"title", []OperatorKey{OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty}},
		{"tags", []OperatorKey{OpIn, OpNotIn}},
		{"project", []OperatorKey{OpEquals, OpNotEquals}},
		{"is_completed", []OperatorKey{OpIsTrue, OpIsFalse}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			ops, err := reg.OperatorsFor(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(ops))
		})
	}

	dateOps, err := reg.OperatorsFor("due_date")
	require.NoError(t, err)
	assert.Contains(t, keys(dateOps), OpIsOverdue)
	assert.Contains(t, keys(dateOps), OpBetween)
	assert.NotContains(t, keys(dateOps), OpContains)
}

func TestRegistry_DefaultOperatorPerType(t *testing.T) {
	reg, err := NewRegistry([]Field{
		{Key: "title", Type: FieldText},
		{Key: "count", Type: FieldNumber},
		{Key: "due", Type: FieldDate},
		{Key: "created", Type: FieldDateTime},
		{Key: "status", Type: FieldSelect},
		{Key: "tags", Type: FieldMultiSelect},
		{Key: "done", Type: FieldBoolean},
		{Key: "project", Type: FieldRelation},
	}, DefaultOperators())
	require.NoError(t, err)

	want := map[string]OperatorKey{
		"title":   OpEquals,
		"count":   OpGreaterThan,
		"due":     OpIsEmpty,
		"created": OpIsEmpty,
		"status":  OpEquals,
		"tags":    OpIn,
		"done":    OpIsTrue,
		"project": OpEquals,
	}
	for key, op := range want {
		t.Run(key, func(t *testing.T) {
			ops, err := reg.OperatorsFor(key)
			require.NoError(t, err)
			require.NotEmpty(t, ops)
			assert.Equal(t, op, ops[0].Key)
		})
	}

	count, err := reg.OperatorsFor("count")
	require.NoError(t, err)
	assert.NotContains(t, keys(count), OpEquals)
	assert.NotContains(t, keys(count), OpIsEmpty)
}

func TestField_ResolveOption(t *testing.T) {
	f := Field{Key: "priority", Type: FieldSelect, Options: []Option{
		{Value: Number(0), Label: "低", Name: "LOW"},
		{Value: Number(2), Label: "高", Name: "HIGH"},
	}}

	assert.True(t, Number(2).Equal(f.ResolveOption(Text("HIGH"))))
	assert.True(t, Number(2).Equal(f.ResolveOption(Text("high"))))
	assert.True(t, Number(0).Equal(f.ResolveOption(Text("低"))))
	assert.True(t, Number(2).Equal(f.ResolveOption(Number(2))))
	assert.True(t, Text("MEDIUM").Equal(f.ResolveOption(Text("MEDIUM"))), "unknown names pass through")
	assert.True(t, List(Number(0), Number(2)).Equal(f.ResolveOption(Texts("LOW", "HIGH"))))

	plain := Field{Key: "title", Type: FieldText}
	assert.True(t, Text("HIGH").Equal(plain.ResolveOption(Text("HIGH"))))
}

func TestRegistry_EveryOperatorHasAType(t *testing.T) {
	reg := testRegistry(t)
	ops := reg.Operators()
	require.Len(t, ops, len(DefaultOperators()))
	for _, op := range ops {
		assert.NotEmpty(t, op.Supported.Types(), op.Key)
		assert.NotEmpty(t, op.Label, op.Key)
		assert.Equal(t, op.Shape != ShapeNone, op.ValueRequired, op.Key)
	}
}

func TestRegistry_Aliases(t *testing.T) {
	reg := testRegistry(t)
	f, err := reg.Field("project__name")
	require.NoError(t, err)
	assert.Equal(t, "project", f.Key)

	ops, err := reg.OperatorsFor("project__name")
	require.NoError(t, err)
	assert.Equal(t, OpEquals, ops[0].Key)
}

func TestRegistry_LookupErrors(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Field("titel")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "did you mean 'title'?", lerr.Suggestion)
	assert.Equal(t, "unknown field 'titel' (did you mean 'title'?)", err.Error())

	_, err = reg.Field("completely_unrelated_key")
	require.True(t, errors.As(err, &lerr))
	assert.Empty(t, lerr.Suggestion)

	_, err = reg.Operator("is_todya")
	assert.True(t, errors.Is(err, ErrUnknownOperator))
	assert.Contains(t, err.Error(), "is_today")
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Field{{Key: "a"}, {Key: "a"}}, nil)
	assert.Error(t, err)

	_, err = NewRegistry(nil, []Operator{{Key: OpEquals}, {Key: OpEquals}})
	assert.Error(t, err)
}

func TestRegistry_Supports(t *testing.T) {
	reg := testRegistry(t)
	assert.True(t, reg.Supports(OpIn, FieldMultiSelect))
	assert.False(t, reg.Supports(OpContains, FieldNumber))
	assert.False(t, reg.Supports("nope", FieldText))
}

func TestField_OptionLabel(t *testing.T) {
	reg := testRegistry(t)
	f, err := reg.Field("status")
	require.NoError(t, err)

	label, ok := f.OptionLabel(Number(1))
	assert.True(t, ok)
	assert.Equal(t, "待办", label)

	_, ok = f.OptionLabel(Text("1"))
	assert.False(t, ok)
}

func TestFieldType_Text(t *testing.T) {
	for _, ft := range []FieldType{FieldText, FieldNumber, FieldDate, FieldDateTime, FieldSelect, FieldMultiSelect, FieldBoolean, FieldRelation} {
		b, err := ft.MarshalText()
		require.NoError(t, err)
		var back FieldType
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, ft, back)
	}
	_, err := ParseFieldType("json")
	assert.Error(t, err)
}
