// Package scoring turns progress entries into per-objective values, points, completion times
// and ranked leaderboards. Everything here is a pure function of its inputs.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ChallengeType selects how entries accumulate, how total points are computed and when a
// challenge counts as complete.
type ChallengeType string

const (
	TypeStandard   ChallengeType = "standard"
	TypeBingo      ChallengeType = "bingo"
	TypeCompletion ChallengeType = "completion"
	TypeWeekly     ChallengeType = "weekly"
	// TypeChecklist is stored as "collection"; "checklist" is accepted on input.
	TypeChecklist ChallengeType = "collection"
)

// ParseChallengeType folds case and aliases. An empty value is standard.
func ParseChallengeType(raw string) (ChallengeType, error) {
	switch cases.Fold().String(strings.TrimSpace(raw)) {
	case "", "standard":
		return TypeStandard, nil
	case "bingo":
		return TypeBingo, nil
	case "completion":
		return TypeCompletion, nil
	case "weekly":
		return TypeWeekly, nil
	case "collection", "checklist":
		return TypeChecklist, nil
	default:
		return "", fmt.Errorf("unknown challenge type %q", raw)
	}
}

// StoredChallengeType reads a persisted type. Values this build does not know score with
// standard rules instead of failing the read.
func StoredChallengeType(raw string) ChallengeType {
	typ, err := ParseChallengeType(raw)
	if err != nil {
		return TypeStandard
	}
	return typ
}

func (t *ChallengeType) UnmarshalText(b []byte) error {
	parsed, err := ParseChallengeType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Objective is one measurable goal of a challenge.
type Objective struct {
	ID            string  `json:"id" firestore:"id"`
	Title         string  `json:"title" firestore:"title"`
	TargetValue   float64 `json:"targetValue" firestore:"targetValue"`
	Unit          string  `json:"unit" firestore:"unit"`
	PointsPerUnit float64 `json:"pointsPerUnit" firestore:"pointsPerUnit"`
}

// Entry is a single timestamped progress submission. CreatedAt is expected in UTC.
type Entry struct {
	ID          string    `json:"id" firestore:"id"`
	UserID      string    `json:"userId" firestore:"userId"`
	ChallengeID string    `json:"challengeId" firestore:"challengeId"`
	ObjectiveID string    `json:"objectiveId" firestore:"objectiveId"`
	Value       float64   `json:"value" firestore:"value"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
	Notes       string    `json:"notes,omitempty" firestore:"notes,omitempty"`
}

// Challenge is the scoring view of a challenge definition. StartDate and EndDate are
// YYYY-MM-DD; an empty EndDate means open-ended.
type Challenge struct {
	ID           string
	Type         ChallengeType
	Objectives   []Objective
	StartDate    string
	EndDate      string
	CappedPoints bool
	IsRepeating  bool
	Participants []string
}

// WithWindow returns a copy of c evaluated over a participant's own window. Empty values keep
// the challenge dates.
func (c Challenge) WithWindow(w Window) Challenge {
	if w.Start != "" {
		c.StartDate = w.Start
		c.EndDate = w.End
	}
	return c
}

func (c Challenge) objective(id string) (Objective, bool) {
	for _, obj := range c.Objectives {
		if obj.ID == id {
			return obj, true
		}
	}
	return Objective{}, false
}

// Window is a participant's effective start and end date for repeating challenges.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}
