package query

import (
	"testing"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

func testEngine(t *testing.T, now time.Time) *Engine {
	t.Helper()
	return New(task.Registry(), WithLocation(time.UTC), WithNow(now))
}

func at(s string) time.Time {
	t, err := schema.ParseTime(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func day(s string) *time.Time {
	t := at(s)
	return &t
}

func titles(records []schema.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.(task.Task).Title
	}
	return out
}

func flt(field string, op schema.OperatorKey, value any) view.Filter {
	return view.Filter{ID: field + "-" + string(op), Field: field, Operator: op, Value: value, Logic: view.And}
}

func or(f view.Filter) view.Filter {
	f.Logic = view.Or
	return f
}
