// Package timeutil provides calendar helpers bound to a time zone: day
// keys, ISO week keys and day/week boundaries. Progression rules are
// partitioned by the learner's calendar day, not by UTC.
package timeutil

import (
	"fmt"
	"time"
)

// DayLayout is the layout of day keys ("2026-10-16").
const DayLayout = "2006-01-02"

// Calendar interprets instants in a fixed location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// UTC is the Calendar used when nothing is configured.
var UTC = NewCalendar(time.UTC)

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// In converts t to the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// DayKey returns the calendar day of t, e.g. "2026-10-16".
func (c Calendar) DayKey(t time.Time) string {
	return c.In(t).Format(DayLayout)
}

// WeekKey returns the ISO week of t, e.g. "2026-W42".
func (c Calendar) WeekKey(t time.Time) string {
	year, week := c.In(t).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseDay parses a day key in the calendar's location.
func (c Calendar) ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, key, c.Location())
}

// StartOfDay returns 00:00 of t's calendar day.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, c.Location())
}

// EndOfDay returns the last nanosecond of t's calendar day.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns Monday 00:00 of t's ISO week.
func (c Calendar) StartOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	offset := int(day.Weekday()) - 1
	if offset < 0 {
		offset = 6 // Sunday
	}
	return day.AddDate(0, 0, -offset)
}

// EndOfWeek returns the last nanosecond of Sunday of t's ISO week.
func (c Calendar) EndOfWeek(t time.Time) time.Time {
	return c.StartOfWeek(t).AddDate(0, 0, 7).Add(-time.Nanosecond)
}

// Hour returns the local hour of t.
func (c Calendar) Hour(t time.Time) int {
	return c.In(t).Hour()
}

// DaysBetween returns the number of calendar days from a to b.
// It is negative when b is before a.
func (c Calendar) DaysBetween(a, b time.Time) int {
	da := c.StartOfDay(a)
	db := c.StartOfDay(b)
	// Dates are rebuilt in UTC so DST shifts do not skew the division.
	ua := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// LoadCalendar resolves a time zone name. Unknown names fall back to UTC
// and return the lookup error.
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return UTC, fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}
