package schema

import "time"

// Day is a calendar date counted in days since 1970-01-01.
type Day int

// DayOf returns the calendar date of t as seen in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Midnight returns the first instant of d in loc.
func (d Day) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, dd := time.Unix(int64(d)*86400, 0).UTC().Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// Weekday of d; 1970-01-01 was a Thursday.
func (d Day) Weekday() time.Weekday {
	return time.Weekday((int(d)%7 + 7 + 4) % 7)
}

// WeekStart returns the Monday on or before d.
func (d Day) WeekStart() Day {
	offset := (int(d.Weekday()) + 6) % 7
	return d - Day(offset)
}

// MonthBounds returns the first and last day of the month containing d,
// shifted by delta months.
func (d Day) MonthBounds(delta int) (first, last Day) {
	y, m, _ := time.Unix(int64(d)*86400, 0).UTC().Date()
	start := time.Date(y, m+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Day(start.Unix() / 86400), Day(end.Unix() / 86400)
}
