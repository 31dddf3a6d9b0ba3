package query

import (
	"time"

	"golang.org/x/text/cases"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// window is an inclusive range of calendar days.
type window struct {
	from, to schema.Day
}

func (w window) contains(d schema.Day) bool {
	return d >= w.from && d <= w.to
}

// relativeWindow returns the calendar window of a relative-date operator.
// Weeks run Monday through Sunday; months run from the first to the last
// calendar day.
func relativeWindow(key schema.OperatorKey, today schema.Day) (window, bool) {
	week := today.WeekStart()
	switch key {
	case schema.OpIsToday:
		return window{today, today}, true
	case schema.OpIsYesterday:
		return window{today - 1, today - 1}, true
	case schema.OpIsTomorrow:
		return window{today + 1, today + 1}, true
	case schema.OpIsThisWeek:
		return window{week, week + 6}, true
	case schema.OpIsLastWeek:
		return window{week - 7, week - 1}, true
	case schema.OpIsNextWeek:
		return window{week + 7, week + 13}, true
	case schema.OpIsThisMonth:
		first, last := today.MonthBounds(0)
		return window{first, last}, true
	case schema.OpIsLastMonth:
		first, last := today.MonthBounds(-1)
		return window{first, last}, true
	case schema.OpIsNextMonth:
		first, last := today.MonthBounds(1)
		return window{first, last}, true
	}
	return window{}, false
}

// matchRelative evaluates a relative-date operator. Only the record and the
// current instant take part.
func matchRelative(key schema.OperatorKey, ft schema.FieldType, got schema.Value, r schema.Record, now time.Time, loc *time.Location) bool {
	if key == schema.OpHasNoDate {
		return got.IsNull()
	}
	t, ok := got.Time()
	if !ok {
		return false
	}
	if key == schema.OpIsOverdue {
		if r.Completed() {
			return false
		}
		if ft == schema.FieldDate {
			return schema.DayOf(t, loc) < schema.DayOf(now, loc)
		}
		return t.Before(now)
	}
	w, ok := relativeWindow(key, schema.DayOf(now, loc))
	return ok && w.contains(schema.DayOf(t, loc))
}

// fold maps s to its case-folded form for case-insensitive comparison.
func fold(s string) string {
	return cases.Fold().String(s)
}
