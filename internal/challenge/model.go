package challenge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
)

// Challenge is a stored challenge definition. Participants is filled from memberships on read.
type Challenge struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description,omitempty"`
	Type         scoring.ChallengeType `json:"challengeType"`
	Objectives   []scoring.Objective   `json:"objectives"`
	StartDate    string                `json:"startDate"`
	EndDate      string                `json:"endDate,omitempty"`
	CappedPoints bool                  `json:"cappedPoints"`
	IsRepeating  bool                  `json:"isRepeating"`
	TotalPoints  float64               `json:"totalPoints"`
	Participants []string              `json:"participants"`
	CreatedBy    string                `json:"createdBy"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Definition is the scoring view of the challenge.
func (c Challenge) Definition() scoring.Challenge {
	return scoring.Challenge{
		ID:           c.ID,
		Type:         c.Type,
		Objectives:   c.Objectives,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		CappedPoints: c.CappedPoints,
		IsRepeating:  c.IsRepeating,
		Participants: c.Participants,
	}
}

func (c Challenge) hasObjective(id string) bool {
	for _, obj := range c.Objectives {
		if obj.ID == id {
			return true
		}
	}
	return false
}

// Membership records that a user joined a challenge. For repeating challenges StartDate and
// EndDate are the user's own window; otherwise they mirror the challenge.
type Membership struct {
	ChallengeID string    `json:"challengeId"`
	UserID      string    `json:"userId"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Window returns the membership's scoring window.
func (m Membership) Window() scoring.Window {
	return scoring.Window{Start: m.StartDate, End: m.EndDate}
}

// ObjectiveInput describes one objective of a new or replaced objective set.
type ObjectiveInput struct {
	ID            string  `json:"id" validate:"omitempty,max=64"`
	Title         string  `json:"title" validate:"required,max=200"`
	TargetValue   float64 `json:"targetValue" validate:"gte=0"`
	Unit          string  `json:"unit" validate:"max=32"`
	PointsPerUnit float64 `json:"pointsPerUnit" validate:"gte=0"`
}

// CreateChallengeInput captures the data required to create a challenge.
type CreateChallengeInput struct {
	Title        string           `json:"title" validate:"required,max=120"`
	Description  string           `json:"description" validate:"max=2000"`
	Type         string           `json:"challengeType"`
	Objectives   []ObjectiveInput `json:"objectives" validate:"required,min=1,max=100,dive"`
	StartDate    string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string           `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	CappedPoints bool             `json:"cappedPoints"`
	IsRepeating  bool             `json:"isRepeating"`
}

// Validate ensures the input fields meet the domain constraints.
func (i CreateChallengeInput) Validate() error {
	if err := validateStruct(i); err != nil {
		return err
	}
	if i.EndDate != "" {
		if _, ok := calendar.ResolveWindow(i.StartDate, i.EndDate); !ok {
			return errors.New("endDate must be on or after startDate")
		}
	}
	return nil
}

// JoinInput optionally carries a participant's own window for repeating challenges.
type JoinInput struct {
	UserID      string `json:"-" validate:"required"`
	ChallengeID string `json:"-" validate:"required"`
	StartDate   string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// LogEntryInput captures one progress submission.
type LogEntryInput struct {
	UserID      string     `json:"-" validate:"required"`
	ChallengeID string     `json:"-" validate:"required"`
	ObjectiveID string     `json:"objectiveId" validate:"required"`
	Value       float64    `json:"value"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Notes       string     `json:"notes" validate:"max=500"`
}

// Validate ensures the input fields meet the domain constraints. Zero is never stored;
// resetting an objective deletes its entries instead.
func (i LogEntryInput) Validate() error {
	var problems []string
	if err := validateStruct(i); err != nil {
		problems = append(problems, err.Error())
	}
	if i.Value == 0 {
		problems = append(problems, "value must not be 0")
	}
	if math.IsNaN(i.Value) || math.IsInf(i.Value, 0) {
		problems = append(problems, "value must be a finite number")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ListEntriesInput selects a participant's entries. Start and End are inclusive local dates.
// Week, when set, selects the Monday-Sunday week containing that date and overrides Start/End.
type ListEntriesInput struct {
	UserID      string `validate:"required"`
	ChallengeID string `validate:"required"`
	ObjectiveID string
	Start       string `validate:"omitempty,datetime=2006-01-02"`
	End         string `validate:"omitempty,datetime=2006-01-02"`
	Week        string `validate:"omitempty,datetime=2006-01-02"`
}

// ProgressView is a participant's derived standing in one challenge.
type ProgressView struct {
	ChallengeID    string                      `json:"challengeId"`
	UserID         string                      `json:"userId"`
	Window         scoring.Window              `json:"window"`
	Objectives     []scoring.ObjectiveProgress `json:"objectives"`
	Points         scoring.Points              `json:"points"`
	Score          float64                     `json:"score"`
	TotalPoints    float64                     `json:"totalPoints"`
	Percent        float64                     `json:"percent"`
	CompletionTime *time.Time                  `json:"completionTime,omitempty"`
}

// LogResult is returned after logging an entry.
type LogResult struct {
	Entry     scoring.Entry `json:"entry"`
	Completed bool          `json:"completed"`
}

// Repository encapsulates persistence for challenges, memberships, entries and bingo lines.
type Repository interface {
	CreateChallenge(ctx context.Context, c Challenge) error
	UpdateChallenge(ctx context.Context, c Challenge) error
	GetChallenge(ctx context.Context, challengeID string) (Challenge, error)
	ListChallenges(ctx context.Context) ([]Challenge, error)

	AddMembership(ctx context.Context, m Membership) error
	RemoveMembership(ctx context.Context, challengeID, userID string) error
	ListMemberships(ctx context.Context, challengeID string) ([]Membership, error)

	InsertEntry(ctx context.Context, e scoring.Entry) error
	ListEntries(ctx context.Context, userID, challengeID string) ([]scoring.Entry, error)
	ListEntriesInRange(ctx context.Context, userID, challengeID string, startInclusive, endExclusive time.Time) ([]scoring.Entry, error)
	// DeleteObjectiveEntries removes every entry for the tuple atomically and reports how many.
	DeleteObjectiveEntries(ctx context.Context, userID, challengeID, objectiveID string) (int, error)

	ListAnnouncedLines(ctx context.Context, userID, challengeID string) (map[string]bool, error)
	// AddAnnouncedLine returns ErrConflict when the line was already announced.
	AddAnnouncedLine(ctx context.Context, userID, challengeID, lineKey string, at time.Time) error
}

// ErrNotFound indicates the requested challenge or membership does not exist.
var ErrNotFound = errors.New("challenge not found")

// ErrConflict indicates a duplicate identifier collision.
var ErrConflict = errors.New("already exists")

// ErrInvalidInput indicates the provided data failed validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrForbidden indicates the caller may not modify the challenge.
var ErrForbidden = errors.New("forbidden")

// ErrNotParticipant indicates the user has not joined the challenge.
var ErrNotParticipant = errors.New("user is not a participant")

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new records.
type IDGenerator interface {
	NewID() string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return errors.New(strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func normalizeUnit(unit string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(unit))
}
