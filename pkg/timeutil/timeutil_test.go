package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_DayKeyUsesLocation(t *testing.T) {
	plus5 := NewCalendar(time.FixedZone("UTC+5", 5*60*60))
	instant := time.Date(2026, 10, 16, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-16", UTC.DayKey(instant))
	assert.Equal(t, "2026-10-17", plus5.DayKey(instant))
}

func TestCalendar_WeekKey(t *testing.T) {
	assert.Equal(t, "2026-W42", UTC.WeekKey(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)))
	// 2027-01-01 is a Friday belonging to ISO week 53 of 2026.
	assert.Equal(t, "2026-W53", UTC.WeekKey(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestCalendar_WeekBoundaries(t *testing.T) {
	friday := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

	start := UTC.StartOfWeek(friday)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Monday, start.Weekday())

	end := UTC.EndOfWeek(friday)
	assert.Equal(t, time.Sunday, end.Weekday())
	assert.Equal(t, "2026-10-18", UTC.DayKey(end))

	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, start, UTC.StartOfWeek(sunday))
}

func TestCalendar_DaysBetween(t *testing.T) {
	a := time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 10, 17, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, UTC.DaysBetween(a, b))
	assert.Equal(t, -1, UTC.DaysBetween(b, a))
	assert.Equal(t, 0, UTC.DaysBetween(a, a))
}

func TestLoadCalendar(t *testing.T) {
	cal, err := LoadCalendar("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cal.Location())

	_, err = LoadCalendar("Not/AZone")
	assert.Error(t, err)
}
