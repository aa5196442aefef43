package scoring

import (
	"sort"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

// objectiveTally holds everything any challenge type needs to derive an objective's value.
type objectiveTally struct {
	sum   float64
	count int
	days  map[string]struct{}
	weeks map[string]float64
}

func (t *objectiveTally) add(e Entry, norm calendar.Normalizer) {
	t.sum += e.Value
	t.count++
	t.days[norm.LocalDate(e.CreatedAt).String()] = struct{}{}
	t.weeks[norm.WeekIdentifierOf(e.CreatedAt)] += e.Value
}

// tally is the running state shared by aggregation and completion replay.
type tally struct {
	challenge   Challenge
	rules       rules
	norm        calendar.Normalizer
	byObjective map[string]*objectiveTally
}

func newTally(c Challenge, norm calendar.Normalizer) *tally {
	t := &tally{
		challenge:   c,
		rules:       rulesFor(c.Type),
		norm:        norm,
		byObjective: make(map[string]*objectiveTally, len(c.Objectives)),
	}
	for _, obj := range c.Objectives {
		t.byObjective[obj.ID] = &objectiveTally{
			days:  make(map[string]struct{}),
			weeks: make(map[string]float64),
		}
	}
	return t
}

// add folds e in. Entries for objectives outside the challenge are dropped and add reports false.
func (t *tally) add(e Entry) bool {
	ot, ok := t.byObjective[e.ObjectiveID]
	if !ok {
		return false
	}
	ot.add(e, t.norm)
	return true
}

func (t *tally) progress() map[string]float64 {
	out := make(map[string]float64, len(t.challenge.Objectives))
	for _, obj := range t.challenge.Objectives {
		out[obj.ID] = t.rules.value(obj, t.byObjective[obj.ID])
	}
	return out
}

func (t *tally) complete(progress map[string]float64) bool {
	if len(t.challenge.Objectives) == 0 {
		return false
	}
	return t.rules.complete(t.challenge, progress)
}

// AggregateProgress returns every objective's current value for one user's entries.
// Objectives without entries map to 0. The result depends only on the entry set.
func AggregateProgress(c Challenge, entries []Entry, norm calendar.Normalizer) map[string]float64 {
	t := newTally(c, norm)
	for _, e := range chronological(entries) {
		t.add(e)
	}
	return t.progress()
}

// chronological returns a sorted copy. Ties are broken on content so that float sums are
// accumulated in the same order whatever order the entries arrived in.
func chronological(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.ObjectiveID != b.ObjectiveID {
			return a.ObjectiveID < b.ObjectiveID
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.ID < b.ID
	})
	return sorted
}

// ObjectiveProgress is the per-objective breakdown shown on a participant's progress view.
type ObjectiveProgress struct {
	ObjectiveID     string             `json:"objectiveId"`
	CurrentValue    float64            `json:"currentValue"`
	TargetValue     float64            `json:"targetValue"`
	Percent         float64            `json:"percent"`
	Points          Points             `json:"points"`
	CompletionCount int                `json:"completionCount,omitempty"`
	Days            []string           `json:"days,omitempty"`
	Calendar        []DayMark          `json:"calendar,omitempty"`
	Weeks           map[string]float64 `json:"weeks,omitempty"`
}

// DayMark is one cell of a completion challenge's day grid.
type DayMark struct {
	Date   string `json:"date"`
	Logged bool   `json:"logged"`
}

// DescribeProgress is AggregateProgress with the day and week buckets behind each value.
// Completion objectives carry a grid of every window day and weekly objectives list every
// window week, including the empty ones. Open-ended windows use the one-year horizon.
func DescribeProgress(c Challenge, entries []Entry, norm calendar.Normalizer) []ObjectiveProgress {
	t := newTally(c, norm)
	for _, e := range chronological(entries) {
		t.add(e)
	}
	progress := t.progress()

	var (
		windowDays  []calendar.Date
		windowWeeks []string
	)
	switch c.Type {
	case TypeCompletion:
		windowDays = calendar.DaysInRange(c.StartDate, c.EndDate)
	case TypeWeekly:
		windowWeeks = calendar.WeeksInRange(c.StartDate, c.EndDate)
	}

	out := make([]ObjectiveProgress, 0, len(c.Objectives))
	for _, obj := range c.Objectives {
		ot := t.byObjective[obj.ID]
		value := progress[obj.ID]
		item := ObjectiveProgress{
			ObjectiveID:  obj.ID,
			CurrentValue: value,
			TargetValue:  obj.TargetValue,
			Percent:      ProgressPercent(value, obj.TargetValue),
			Points: Points{
				Capped:   PointsEarned(obj, value, true),
				Uncapped: PointsEarned(obj, value, false),
			},
		}
		switch c.Type {
		case TypeBingo:
			item.CompletionCount = CompletionCount(value, obj.TargetValue)
		case TypeCompletion:
			item.Days = make([]string, 0, len(ot.days))
			for day := range ot.days {
				item.Days = append(item.Days, day)
			}
			sort.Strings(item.Days)
			item.Calendar = make([]DayMark, 0, len(windowDays))
			for _, d := range windowDays {
				day := d.String()
				_, logged := ot.days[day]
				item.Calendar = append(item.Calendar, DayMark{Date: day, Logged: logged})
			}
		case TypeWeekly:
			item.Weeks = make(map[string]float64, len(windowWeeks)+len(ot.weeks))
			for _, week := range windowWeeks {
				item.Weeks[week] = 0
			}
			for week, sum := range ot.weeks {
				item.Weeks[week] = sum
			}
		}
		out = append(out, item)
	}
	return out
}
