package task

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/taskviews/internal/schema"
)

func TestRegistry_Catalogue(t *testing.T) {
	reg := Registry()
	fields := reg.Fields()
	require.Len(t, fields, 16)
	assert.Equal(t, FieldStatus, fields[0].Key)
	assert.Equal(t, FieldCompletedSubtasksCount, fields[len(fields)-1].Key)

	status, err := reg.Field(FieldStatus)
	require.NoError(t, err)
	require.Len(t, status.Options, 4)
	assert.Equal(t, "已放弃", status.Options[3].Label)

	tags, err := reg.Field("tags__name")
	require.NoError(t, err)
	assert.Equal(t, FieldTags, tags.Key)
}

func TestRegistry_BuilderDefaults(t *testing.T) {
	reg := Registry()
	want := map[string]schema.OperatorKey{
		FieldStatus:        schema.OpEquals,
		FieldTitle:         schema.OpEquals,
		FieldProject:       schema.OpEquals,
		FieldTags:          schema.OpIn,
		FieldDueDate:       schema.OpIsEmpty,
		FieldCreatedAt:     schema.OpIsEmpty,
		FieldIsOverdue:     schema.OpIsTrue,
		FieldSubtasksCount: schema.OpGreaterThan,
	}
	for key, op := range want {
		ops, err := reg.OperatorsFor(key)
		require.NoError(t, err)
		require.NotEmpty(t, ops, key)
		assert.Equal(t, op, ops[0].Key, key)
	}
}

func TestTask_Value(t *testing.T) {
	due := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	tk := Task{
		Title:    "write report",
		Status:   StatusTodo,
		Priority: PriorityHigh,
		Project:  &Project{UID: "p1", Name: "Work"},
		Tags:     []Tag{{Name: "a"}, {Name: "b"}},
		DueDate:  &due,
	}

	assert.True(t, schema.Number(1).Equal(tk.Value(FieldStatus)))
	assert.True(t, schema.Number(2).Equal(tk.Value(FieldPriority)))
	assert.True(t, schema.Text("Work").Equal(tk.Value(FieldProject)))
	assert.True(t, schema.Texts("a", "b").Equal(tk.Value(FieldTags)))
	assert.True(t, schema.Time(due).Equal(tk.Value(FieldDueDate)))
	assert.True(t, tk.Value(FieldContent).IsNull())
	assert.True(t, tk.Value(FieldStartDate).IsNull())
	assert.True(t, tk.Value("assignee").IsNull())

	b, _ := tk.Value(FieldIsCompleted).Bool()
	assert.False(t, b)
}

func TestComputeOverdue(t *testing.T) {
	reg := Registry()
	overdue, err := reg.Field(FieldIsOverdue)
	require.NoError(t, err)

	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	// 2024-06-12 01:00 in Shanghai, still 06-11 in UTC.
	now := time.Date(2024, 6, 11, 17, 0, 0, 0, time.UTC).In(shanghai)
	yesterday := time.Date(2024, 6, 11, 0, 0, 0, 0, shanghai)
	today := time.Date(2024, 6, 12, 0, 0, 0, 0, shanghai)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past due", Task{DueDate: &yesterday}, true},
		{"due today", Task{DueDate: &today}, false},
		{"no due date", Task{}, false},
		{"completed", Task{DueDate: &yesterday, Status: StatusCompleted}, false},
		{"abandoned still counts", Task{DueDate: &yesterday, Status: StatusAbandoned}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := overdue.ValueOf(tt.task, now).Bool()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTask_YAMLFixture(t *testing.T) {
	src := `
- uid: t1
  title: Ship release
  status: 1
  priority: 3
  project: {uid: p1, name: Work}
  tags: [{name: urgent}]
  due_date: 2024-06-12T00:00:00Z
- uid: t2
  title: Sub step
  parent_uid: t1
`
	tasks, err := DecodeFixture(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, PriorityUrgent, tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, 12, tasks[0].DueDate.Day())
	assert.True(t, tasks[1].IsSubtask())
	assert.Len(t, Records(tasks), 2)
}

func TestDecodeFixture_Errors(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"unknown key", "- uid: t1\n  titel: x\n", "titel"},
		{"missing uid", "- title: x\n", "no uid"},
		{"duplicate uid", "- uid: a\n- uid: a\n", "duplicate uid 'a'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFixture(strings.NewReader(tt.src))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	tasks, err := DecodeFixture(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"uid": "t1", "title": "json works", "status": 2}]`), 0o600))
	tasks, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed())

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
