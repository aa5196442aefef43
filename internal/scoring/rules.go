package scoring

import (
	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

// rules is implemented once per challenge type. Each type must say how an objective's tally
// becomes its current value, what the challenge is worth in total, and when it is complete.
type rules interface {
	value(obj Objective, t *objectiveTally) float64
	totalPoints(c Challenge) float64
	complete(c Challenge, progress map[string]float64) bool
}

var (
	_ rules = standardRules{}
	_ rules = bingoRules{}
	_ rules = completionRules{}
	_ rules = weeklyRules{}
	_ rules = checklistRules{}
)

func rulesFor(t ChallengeType) rules {
	switch t {
	case TypeBingo:
		return bingoRules{}
	case TypeCompletion:
		return completionRules{}
	case TypeWeekly:
		return weeklyRules{}
	case TypeChecklist:
		return checklistRules{}
	default:
		return standardRules{}
	}
}

type standardRules struct{}

func (standardRules) value(_ Objective, t *objectiveTally) float64 { return t.sum }

func (standardRules) totalPoints(c Challenge) float64 { return targetPoints(c.Objectives) }

func (standardRules) complete(c Challenge, progress map[string]float64) bool {
	return everyTargetMet(c.Objectives, progress)
}

// bingoRules sums like standard; a cell's completion count is floor(value/target).
type bingoRules struct{}

func (bingoRules) value(_ Objective, t *objectiveTally) float64 { return t.sum }

func (bingoRules) totalPoints(c Challenge) float64 { return targetPoints(c.Objectives) }

func (bingoRules) complete(c Challenge, progress map[string]float64) bool {
	return everyTargetMet(c.Objectives, progress)
}

// completionRules counts distinct local days with at least one entry.
type completionRules struct{}

func (completionRules) value(_ Objective, t *objectiveTally) float64 { return float64(len(t.days)) }

func (completionRules) totalPoints(c Challenge) float64 {
	if len(c.Objectives) == 0 {
		return 0
	}
	r, ok := calendar.ResolveWindow(c.StartDate, c.EndDate)
	if !ok {
		return 0
	}
	return float64(r.Days()) * c.Objectives[0].PointsPerUnit
}

// The whole challenge is done once the day counts of all objectives together cover the
// window, not when each objective does.
func (completionRules) complete(c Challenge, progress map[string]float64) bool {
	r, ok := calendar.ResolveWindow(c.StartDate, c.EndDate)
	if !ok {
		return false
	}
	return sumProgress(c.Objectives, progress) >= float64(r.Days())
}

// weeklyRules counts weeks whose summed value reached the objective target.
type weeklyRules struct{}

func (weeklyRules) value(obj Objective, t *objectiveTally) float64 {
	complete := 0
	for _, sum := range t.weeks {
		if sum >= obj.TargetValue {
			complete++
		}
	}
	return float64(complete)
}

func (weeklyRules) totalPoints(c Challenge) float64 {
	if len(c.Objectives) == 0 {
		return 0
	}
	r, ok := calendar.ResolveWindow(c.StartDate, c.EndDate)
	if !ok {
		return 0
	}
	return float64(r.Weeks()) * c.Objectives[0].PointsPerUnit
}

func (weeklyRules) complete(c Challenge, progress map[string]float64) bool {
	r, ok := calendar.ResolveWindow(c.StartDate, c.EndDate)
	if !ok {
		return false
	}
	return sumProgress(c.Objectives, progress) >= float64(r.Weeks())
}

// checklistRules marks an item done on its first entry; values are ignored.
type checklistRules struct{}

func (checklistRules) value(_ Objective, t *objectiveTally) float64 {
	if t.count > 0 {
		return 1
	}
	return 0
}

func (checklistRules) totalPoints(c Challenge) float64 { return float64(len(c.Objectives)) }

func (checklistRules) complete(c Challenge, progress map[string]float64) bool {
	for _, obj := range c.Objectives {
		if progress[obj.ID] < 1 {
			return false
		}
	}
	return true
}

func targetPoints(objectives []Objective) float64 {
	var total float64
	for _, obj := range objectives {
		total += obj.TargetValue * obj.PointsPerUnit
	}
	return total
}

func everyTargetMet(objectives []Objective, progress map[string]float64) bool {
	for _, obj := range objectives {
		if progress[obj.ID] < obj.TargetValue {
			return false
		}
	}
	return true
}

func sumProgress(objectives []Objective, progress map[string]float64) float64 {
	var total float64
	for _, obj := range objectives {
		total += progress[obj.ID]
	}
	return total
}
