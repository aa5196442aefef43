package calendar

import (
	"time"
)

// DefaultTimezone matches the zone the product has always used for day boundaries.
const DefaultTimezone = "Asia/Jakarta"

// Normalizer converts UTC instants to local calendar dates.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a Normalizer for loc; nil means UTC.
func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

// LoadNormalizer resolves an IANA zone name, falling back to UTC when it cannot be loaded.
func LoadNormalizer(name string) Normalizer {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return NewNormalizer(time.UTC)
	}
	return NewNormalizer(loc)
}

// Location returns the normalizer's zone.
func (n Normalizer) Location() *time.Location {
	if n.loc == nil {
		return time.UTC
	}
	return n.loc
}

// LocalDate returns the calendar day t falls on in the normalizer's zone.
func (n Normalizer) LocalDate(t time.Time) Date {
	y, m, d := t.In(n.Location()).Date()
	return NewDate(y, m, d)
}

// WeekIdentifierOf is WeekIdentifier(LocalDate(t)).
func (n Normalizer) WeekIdentifierOf(t time.Time) string {
	return WeekIdentifier(n.LocalDate(t))
}

// Bounds returns the instants [start of first day, start of the day after last) for a range,
// suitable for half-open storage queries.
func (n Normalizer) Bounds(r Range) (time.Time, time.Time) {
	return r.Start.In(n.Location()), r.End.AddDays(1).In(n.Location())
}
