// Package calendar is the single place where timestamps become local calendar days and
// Monday-start weeks. Every day or week bucket in the service goes through it.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO calendar date layout used for storage and map keys.
const Layout = "2006-01-02"

const secondsPerDay = 86400

// Date is a calendar day with no time-of-day or zone. The zero value is "no date".
type Date struct {
	t time.Time // midnight UTC of the day
}

// NewDate builds a Date from its components, normalizing overflow the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Surrounding whitespace is ignored.
func ParseDate(raw string) (Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	t, err := time.Parse(Layout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// In returns the instant the day starts in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// WeekStart returns the Monday on or before d.
func WeekStart(d Date) Date {
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the week
	}
	return d.AddDays(-(weekday - 1))
}

// WeekEnd returns the Sunday closing the week of d.
func WeekEnd(d Date) Date {
	return WeekStart(d).AddDays(6)
}

// WeekIdentifier is the ISO date of the week's Monday, used as the weekly bucket key.
func WeekIdentifier(d Date) string {
	return WeekStart(d).String()
}

// DaysInclusive counts calendar days from start through end: floor((end-start)/1d)+1.
// Inverted ranges yield 0. Exact across the whole 0001-9999 range.
func DaysInclusive(start, end Date) int {
	days := (end.t.Unix()-start.t.Unix())/secondsPerDay + 1
	if days < 0 {
		return 0
	}
	return int(days)
}

// IsFullWeeks reports whether [start, end] runs Monday through Sunday.
func IsFullWeeks(start, end Date) bool {
	if end.Before(start) {
		return false
	}
	return start.Weekday() == time.Monday && end.Weekday() == time.Sunday
}

// NumberOfWeeks counts the weeks in [start, end].
//
// Aligned ranges count days/7. A range of exactly seven days counts as one week even when it
// is not Monday-aligned. Any other misaligned range counts every Monday-start week it touches.
func NumberOfWeeks(start, end Date) int {
	days := DaysInclusive(start, end)
	if days <= 0 {
		return 0
	}
	if IsFullWeeks(start, end) {
		return days / 7
	}
	// TODO: drop this once every weekly challenge is stored Monday-aligned.
	if days == 7 {
		return 1
	}
	return DaysInclusive(WeekStart(start), WeekStart(end))/7 + 1
}
