package calendar

// OpenEndedHorizonDays is the provisional length given to challenges without an end date.
const OpenEndedHorizonDays = 365

// MaxGridDays is the longest window DaysInRange and WeeksInRange will expand.
const MaxGridDays = 3660

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Days is DaysInclusive(r.Start, r.End).
func (r Range) Days() int { return DaysInclusive(r.Start, r.End) }

// Weeks is NumberOfWeeks(r.Start, r.End).
func (r Range) Weeks() int { return NumberOfWeeks(r.Start, r.End) }

// Contains reports whether d lies within the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// ResolveWindow parses stored start/end dates. An empty end resolves to the open-ended
// horizon. ok is false when either date is malformed or the range is inverted.
func ResolveWindow(start, end string) (Range, bool) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, false
	}
	var e Date
	if end == "" {
		e = s.AddDays(OpenEndedHorizonDays - 1)
	} else {
		e, err = ParseDate(end)
		if err != nil {
			return Range{}, false
		}
	}
	if e.Before(s) {
		return Range{}, false
	}
	return Range{Start: s, End: e}, true
}

// DaysInRange lists every day of the window, or nothing when the window does not resolve
// or spans more than MaxGridDays.
func DaysInRange(start, end string) []Date {
	r, ok := ResolveWindow(start, end)
	if !ok || r.Days() > MaxGridDays {
		return []Date{}
	}
	days := make([]Date, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// WeeksInRange lists the week identifiers the window touches, or nothing when it does not
// resolve or spans more than MaxGridDays.
func WeeksInRange(start, end string) []string {
	r, ok := ResolveWindow(start, end)
	if !ok || r.Days() > MaxGridDays {
		return []string{}
	}
	weeks := make([]string, 0, r.Days()/7+2)
	for w := WeekStart(r.Start); !w.After(r.End); w = w.AddDays(7) {
		weeks = append(weeks, w.String())
	}
	return weeks
}
