package scoring

import "math"

// Points carries both scoring modes; the UI shows both, ranking picks one.
type Points struct {
	Capped   float64 `json:"capped"`
	Uncapped float64 `json:"uncapped"`
}

// Score returns the value used for ranking under the given mode.
func (p Points) Score(capped bool) float64 {
	if capped {
		return p.Capped
	}
	return p.Uncapped
}

// PointsEarned is value*ppu, with value clamped to the target when capped.
func PointsEarned(obj Objective, value float64, capped bool) float64 {
	if capped && value > obj.TargetValue {
		value = obj.TargetValue
	}
	return value * obj.PointsPerUnit
}

// ComputePoints sums both modes over all objectives in one pass. Objectives missing from
// progress count as 0.
func ComputePoints(c Challenge, progress map[string]float64) Points {
	var p Points
	for _, obj := range c.Objectives {
		value := progress[obj.ID]
		p.Capped += PointsEarned(obj, value, true)
		p.Uncapped += PointsEarned(obj, value, false)
	}
	return p
}

// TotalPoints is the challenge's maximum, stored on the challenge when it is created or its
// objectives change. Open-ended completion and weekly challenges use a 365-day horizon.
func TotalPoints(c Challenge) float64 {
	return rulesFor(c.Type).totalPoints(c)
}

// ProgressPercent is value/target as a percentage in [0, 100]. A zero target gives 0.
func ProgressPercent(value, target float64) float64 {
	if target <= 0 || math.IsNaN(value) {
		return 0
	}
	pct := value / target * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
