package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

func TestSortRecords_MultiKeyStable(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	records := task.Records([]task.Task{
		{Title: "b", Priority: task.PriorityLow},
		{Title: "a", Priority: task.PriorityHigh},
		{Title: "c", Priority: task.PriorityHigh},
		{Title: "a", Priority: task.PriorityLow, Content: "second a"},
		{Title: "A", Priority: task.PriorityLow, Content: "third a"},
	})

	got, err := e.SortRecords(records, []view.SortKey{
		{Field: "priority", Direction: view.Desc},
		{Field: "title", Direction: view.Asc},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "a", "A", "b"}, titles(got))
	// "a" and "A" tie case-insensitively and keep their input order.
	assert.Equal(t, "second a", got[2].(task.Task).Content)
	assert.Equal(t, "third a", got[3].(task.Task).Content)
}

func TestSortRecords_Idempotent(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	records := task.Records([]task.Task{
		{Title: "x", Status: task.StatusTodo, DueDate: day("2024-06-03")},
		{Title: "y", Status: task.StatusCompleted},
		{Title: "z", Status: task.StatusTodo, DueDate: day("2024-06-01")},
		{Title: "w", Status: task.StatusTodo, DueDate: day("2024-06-03")},
	})
	keys := []view.SortKey{{Field: "status", Direction: view.Asc}, {Field: "due_date", Direction: view.Asc}}

	once, err := e.SortRecords(records, keys)
	require.NoError(t, err)
	twice, err := e.SortRecords(once, keys)
	require.NoError(t, err)
	assert.Equal(t, titles(once), titles(twice))
	assert.Equal(t, []string{"z", "x", "w", "y"}, titles(once))
}

func TestSortRecords_MissingDates(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	records := task.Records([]task.Task{
		{Title: "late", DueDate: day("2024-07-01")},
		{Title: "none"},
		{Title: "early", DueDate: day("2024-01-01")},
	})

	asc, err := e.SortRecords(records, []view.SortKey{{Field: "due_date", Direction: view.Asc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"none", "early", "late"}, titles(asc))

	desc, err := e.SortRecords(records, []view.SortKey{{Field: "due_date", Direction: view.Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "early", "none"}, titles(desc))
}

func TestSortRecords_DescendingKeepsTieOrder(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	records := task.Records([]task.Task{
		{Title: "first", Priority: task.PriorityHigh},
		{Title: "low", Priority: task.PriorityLow},
		{Title: "second", Priority: task.PriorityHigh},
	})

	got, err := e.SortRecords(records, []view.SortKey{{Field: "priority", Direction: view.Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "low"}, titles(got))
}

func TestSortRecords_LeavesInputAlone(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	records := task.Records([]task.Task{{Title: "b"}, {Title: "a"}})

	_, err := e.SortRecords(records, []view.SortKey{{Field: "title", Direction: view.Asc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, titles(records))
}

func TestSortRecords_UnknownField(t *testing.T) {
	e := testEngine(t, at("2024-06-01T09:00:00Z"))
	_, err := e.SortRecords(nil, []view.SortKey{{Field: "assignee", Direction: view.Asc}})
	assert.True(t, errors.Is(err, schema.ErrUnknownField))
}
