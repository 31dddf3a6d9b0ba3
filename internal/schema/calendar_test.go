package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) Day {
	return DayOf(time.Date(y, m, d, 12, 0, 0, 0, time.UTC), time.UTC)
}

func TestDay_Weekday(t *testing.T) {
	assert.Equal(t, time.Thursday, Day(0).Weekday())
	assert.Equal(t, time.Wednesday, Day(-1).Weekday())
	assert.Equal(t, time.Wednesday, date(2024, 6, 12).Weekday())
	assert.Equal(t, time.Sunday, date(2024, 6, 16).Weekday())
}

func TestDay_WeekStartsMonday(t *testing.T) {
	monday := date(2024, 6, 10)
	for d := monday; d < monday+7; d++ {
		assert.Equal(t, monday, d.WeekStart())
	}
	assert.Equal(t, date(2024, 6, 17), date(2024, 6, 17).WeekStart())
}

func TestDay_MonthBounds(t *testing.T) {
	d := date(2024, 1, 31)

	first, last := d.MonthBounds(0)
	assert.Equal(t, date(2024, 1, 1), first)
	assert.Equal(t, date(2024, 1, 31), last)

	first, last = d.MonthBounds(1)
	assert.Equal(t, date(2024, 2, 1), first)
	assert.Equal(t, date(2024, 2, 29), last)

	first, last = d.MonthBounds(-1)
	assert.Equal(t, date(2023, 12, 1), first)
	assert.Equal(t, date(2023, 12, 31), last)
}

func TestDayOf_UsesLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	instant := time.Date(2024, 6, 11, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, date(2024, 6, 11), DayOf(instant, time.UTC))
	assert.Equal(t, date(2024, 6, 12), DayOf(instant, shanghai))

	midnight := date(2024, 6, 12).Midnight(shanghai)
	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, shanghai), midnight)
}
