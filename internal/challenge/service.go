package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/events"
)

// defaultLoadLimit bounds parallel entry loads when building a leaderboard.
const defaultLoadLimit = 8

// Service orchestrates challenge, membership and progress operations.
type Service struct {
	repo      Repository
	clock     Clock
	ids       IDGenerator
	norm      calendar.Normalizer
	publisher events.Publisher
	logger    *slog.Logger
	cache     *progressCache
	loadLimit int
}

// Option customizes a Service.
type Option func(*Service)

// WithNormalizer sets the zone used for day and week boundaries. The default is UTC.
func WithNormalizer(n calendar.Normalizer) Option {
	return func(s *Service) { s.norm = n }
}

// WithPublisher sets the event publisher. Events are dropped by default.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger used for failures that do not fail the request.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoadConcurrency caps how many participants' entries are loaded at once. n <= 0 keeps
// the default.
func WithLoadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.loadLimit = n
		}
	}
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, clock Clock, ids IDGenerator, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	s := &Service{
		repo:      repo,
		clock:     clock,
		ids:       ids,
		norm:      calendar.NewNormalizer(nil),
		publisher: events.Discard{},
		logger:    slog.Default(),
		cache:     newProgressCache(),
		loadLimit: defaultLoadLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateChallenge stores a new challenge and joins its creator to it.
func (s *Service) CreateChallenge(ctx context.Context, userID string, input CreateChallengeInput) (Challenge, error) {
	if userID == "" {
		return Challenge{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := input.Validate(); err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	typ, err := scoring.ParseChallengeType(input.Type)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if err := validateSchedule(typ, input.StartDate, input.EndDate); err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	objectives, err := s.buildObjectives(typ, input.Objectives)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	now := s.clock.Now().UTC()
	c := Challenge{
		ID:           s.ids.NewID(),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Type:         typ,
		Objectives:   objectives,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		CappedPoints: input.CappedPoints,
		IsRepeating:  input.IsRepeating,
		CreatedBy:    userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.TotalPoints = scoring.TotalPoints(c.Definition())

	if err := s.repo.CreateChallenge(ctx, c); err != nil {
		return Challenge{}, err
	}

	m, err := s.newMembership(c, JoinInput{UserID: userID, ChallengeID: c.ID}, now)
	if err != nil {
		return Challenge{}, err
	}
	if err := s.repo.AddMembership(ctx, m); err != nil {
		return Challenge{}, err
	}
	c.Participants = []string{userID}
	return c, nil
}

// GetChallenge returns a challenge with its participants.
func (s *Service) GetChallenge(ctx context.Context, challengeID string) (Challenge, error) {
	c, _, err := s.challengeWithMembers(ctx, challengeID)
	return c, err
}

// challengeWithMembers loads a challenge and its memberships once, filling Participants.
func (s *Service) challengeWithMembers(ctx context.Context, challengeID string) (Challenge, []Membership, error) {
	if challengeID == "" {
		return Challenge{}, nil, ErrNotFound
	}
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return Challenge{}, nil, err
	}
	members, err := s.repo.ListMemberships(ctx, challengeID)
	if err != nil {
		return Challenge{}, nil, err
	}
	c.Participants = participantIDs(members)
	return c, members, nil
}

// ListChallenges returns every challenge with its participants.
func (s *Service) ListChallenges(ctx context.Context) ([]Challenge, error) {
	challenges, err := s.repo.ListChallenges(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadLimit)
	for i := range challenges {
		g.Go(func() error {
			members, err := s.repo.ListMemberships(gctx, challenges[i].ID)
			if err != nil {
				return fmt.Errorf("list members of %s: %w", challenges[i].ID, err)
			}
			challenges[i].Participants = participantIDs(members)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return challenges, nil
}

// ReplaceObjectives swaps the whole objective set and recomputes the challenge's total points.
// Only the creator may do this.
func (s *Service) ReplaceObjectives(ctx context.Context, userID, challengeID string, inputs []ObjectiveInput) (Challenge, error) {
	c, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return Challenge{}, err
	}
	if c.CreatedBy != userID {
		return Challenge{}, fmt.Errorf("%w: only the creator can edit objectives", ErrForbidden)
	}
	if err := validateStruct(objectiveSet{Objectives: inputs}); err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	objectives, err := s.buildObjectives(c.Type, inputs)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	c.Objectives = objectives
	c.TotalPoints = scoring.TotalPoints(c.Definition())
	c.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateChallenge(ctx, c); err != nil {
		return Challenge{}, err
	}
	s.cache.invalidateChallenge(c.ID)
	return c, nil
}

type objectiveSet struct {
	Objectives []ObjectiveInput `json:"objectives" validate:"required,min=1,max=100,dive"`
}

// Join adds the user to the challenge. Repeating challenges give each participant their own
// window: the requested one, or one starting today with the challenge's length.
func (s *Service) Join(ctx context.Context, input JoinInput) (Membership, error) {
	if err := validateStruct(input); err != nil {
		return Membership{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	c, err := s.repo.GetChallenge(ctx, input.ChallengeID)
	if err != nil {
		return Membership{}, err
	}
	m, err := s.newMembership(c, input, s.clock.Now().UTC())
	if err != nil {
		return Membership{}, err
	}
	if err := s.repo.AddMembership(ctx, m); err != nil {
		return Membership{}, err
	}
	s.cache.invalidate(input.UserID, input.ChallengeID)
	return m, nil
}

// Leave removes the user from the challenge. Their entries are kept.
func (s *Service) Leave(ctx context.Context, userID, challengeID string) error {
	if userID == "" || challengeID == "" {
		return ErrNotFound
	}
	if err := s.repo.RemoveMembership(ctx, challengeID, userID); err != nil {
		return err
	}
	s.cache.invalidate(userID, challengeID)
	return nil
}

// LogEntry appends a progress entry and reports whether it completed the challenge.
func (s *Service) LogEntry(ctx context.Context, input LogEntryInput) (LogResult, error) {
	if err := input.Validate(); err != nil {
		return LogResult{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	c, err := s.repo.GetChallenge(ctx, input.ChallengeID)
	if err != nil {
		return LogResult{}, err
	}
	if !c.hasObjective(input.ObjectiveID) {
		return LogResult{}, fmt.Errorf("%w: unknown objective %s", ErrInvalidInput, input.ObjectiveID)
	}
	m, err := s.membership(ctx, c.ID, input.UserID)
	if err != nil {
		return LogResult{}, err
	}

	now := s.clock.Now().UTC()
	createdAt := now
	if input.CreatedAt != nil {
		createdAt = input.CreatedAt.UTC().Truncate(storePrecision)
	}
	if !s.withinWindow(c, m, createdAt) {
		return LogResult{}, fmt.Errorf("%w: entry date is outside the challenge window", ErrInvalidInput)
	}

	def := definitionFor(c, m)
	before, err := s.entriesFor(ctx, c, m)
	if err != nil {
		return LogResult{}, err
	}
	wasComplete := scoring.ComputeCompletionTime(def, before, s.norm) != nil

	entry := scoring.Entry{
		ID:          s.ids.NewID(),
		UserID:      input.UserID,
		ChallengeID: c.ID,
		ObjectiveID: input.ObjectiveID,
		Value:       input.Value,
		CreatedAt:   createdAt,
		Notes:       strings.TrimSpace(input.Notes),
	}
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return LogResult{}, err
	}
	s.cache.invalidate(input.UserID, c.ID)

	result := LogResult{Entry: entry}
	if wasComplete {
		return result, nil
	}
	if at := scoring.ComputeCompletionTime(def, append(before, entry), s.norm); at != nil {
		result.Completed = true
		s.publish(ctx, events.TopicChallengeEvents, events.ChallengeCompleted{
			ChallengeID: c.ID,
			UserID:      input.UserID,
			CompletedAt: *at,
		})
	}
	return result, nil
}

// ResetObjective deletes every entry the user logged against one objective.
func (s *Service) ResetObjective(ctx context.Context, userID, challengeID, objectiveID string) (int, error) {
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return 0, err
	}
	if !c.hasObjective(objectiveID) {
		return 0, fmt.Errorf("%w: unknown objective %s", ErrInvalidInput, objectiveID)
	}
	if _, err := s.membership(ctx, challengeID, userID); err != nil {
		return 0, err
	}

	deleted, err := s.repo.DeleteObjectiveEntries(ctx, userID, challengeID, objectiveID)
	if err != nil {
		return 0, err
	}
	s.cache.invalidate(userID, challengeID)
	s.publish(ctx, events.TopicProgressEvents, events.ObjectiveReset{
		ChallengeID:    challengeID,
		UserID:         userID,
		ObjectiveID:    objectiveID,
		DeletedEntries: deleted,
		ResetAt:        s.clock.Now().UTC(),
	})
	return deleted, nil
}

// ListEntries returns the user's entries, optionally narrowed to an objective and a day range
// or a week.
func (s *Service) ListEntries(ctx context.Context, input ListEntriesInput) ([]scoring.Entry, error) {
	if err := validateStruct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if _, err := s.repo.GetChallenge(ctx, input.ChallengeID); err != nil {
		return nil, err
	}

	r, bounded, err := entryRange(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	var entries []scoring.Entry
	if bounded {
		start, end := s.norm.Bounds(r)
		entries, err = s.repo.ListEntriesInRange(ctx, input.UserID, input.ChallengeID, start, end)
	} else {
		entries, err = s.repo.ListEntries(ctx, input.UserID, input.ChallengeID)
	}
	if err != nil {
		return nil, err
	}
	if input.ObjectiveID == "" {
		return entries, nil
	}

	filtered := make([]scoring.Entry, 0, len(entries))
	for _, e := range entries {
		if e.ObjectiveID == input.ObjectiveID {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func entryRange(input ListEntriesInput) (calendar.Range, bool, error) {
	if input.Week != "" {
		d, err := calendar.ParseDate(input.Week)
		if err != nil {
			return calendar.Range{}, false, err
		}
		return calendar.Range{Start: calendar.WeekStart(d), End: calendar.WeekEnd(d)}, true, nil
	}
	if input.Start == "" {
		if input.End != "" {
			return calendar.Range{}, false, errors.New("end requires start")
		}
		return calendar.Range{}, false, nil
	}
	end := input.End
	if end == "" {
		end = input.Start
	}
	r, ok := calendar.ResolveWindow(input.Start, end)
	if !ok {
		return calendar.Range{}, false, errors.New("end must be on or after start")
	}
	return r, true, nil
}

// Progress returns the user's derived standing, served from cache until the next write.
func (s *Service) Progress(ctx context.Context, userID, challengeID string) (ProgressView, error) {
	view, token, ok := s.cache.get(userID, challengeID)
	if ok {
		return view, nil
	}

	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return ProgressView{}, err
	}
	m, err := s.membership(ctx, challengeID, userID)
	if err != nil {
		return ProgressView{}, err
	}
	entries, err := s.entriesFor(ctx, c, m)
	if err != nil {
		return ProgressView{}, err
	}

	def := definitionFor(c, m)
	objectives := scoring.DescribeProgress(def, entries, s.norm)
	var points scoring.Points
	for _, obj := range objectives {
		points.Capped += obj.Points.Capped
		points.Uncapped += obj.Points.Uncapped
	}
	total := scoring.TotalPoints(def)
	score := points.Score(c.CappedPoints)

	view = ProgressView{
		ChallengeID:    challengeID,
		UserID:         userID,
		Window:         scoring.Window{Start: def.StartDate, End: def.EndDate},
		Objectives:     objectives,
		Points:         points,
		Score:          score,
		TotalPoints:    total,
		Percent:        scoring.ProgressPercent(score, total),
		CompletionTime: scoring.ComputeCompletionTime(def, entries, s.norm),
	}
	s.cache.put(view, token)
	return view, nil
}

// Leaderboard ranks every participant of the challenge.
func (s *Service) Leaderboard(ctx context.Context, challengeID string) ([]scoring.LeaderboardEntry, error) {
	c, members, err := s.challengeWithMembers(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		entries = make(map[string][]scoring.Entry, len(members))
		windows = make(map[string]scoring.Window, len(members))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadLimit)
	for _, m := range members {
		g.Go(func() error {
			list, err := s.entriesFor(gctx, c, m)
			if err != nil {
				return fmt.Errorf("load entries for %s: %w", m.UserID, err)
			}
			mu.Lock()
			entries[m.UserID] = list
			windows[m.UserID] = m.Window()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := scoring.RankInput{
		Challenge:  c.Definition(),
		Entries:    entries,
		Normalizer: s.norm,
	}
	if c.IsRepeating {
		in.Windows = windows
	}
	return scoring.RankLeaderboard(in), nil
}

// CheckBingo announces the next newly completed line on the user's card, if any.
// A line is announced at most once per user.
func (s *Service) CheckBingo(ctx context.Context, userID, challengeID string) (*scoring.Line, error) {
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.Type != scoring.TypeBingo {
		return nil, fmt.Errorf("%w: challenge is not a bingo card", ErrInvalidInput)
	}
	m, err := s.membership(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.entriesFor(ctx, c, m)
	if err != nil {
		return nil, err
	}
	announced, err := s.repo.ListAnnouncedLines(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	def := definitionFor(c, m)
	completed := scoring.CompletedObjectives(def, scoring.AggregateProgress(def, entries, s.norm))
	line, ok := scoring.DetectBingoLine(def.Objectives, completed, announced)
	if !ok {
		return nil, nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.AddAnnouncedLine(ctx, userID, challengeID, line.Key, now); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, nil
		}
		return nil, err
	}
	s.publish(ctx, events.TopicProgressEvents, events.BingoLineCompleted{
		ChallengeID: challengeID,
		UserID:      userID,
		LineKey:     line.Key,
		AnnouncedAt: now,
	})
	return &line, nil
}

func (s *Service) membership(ctx context.Context, challengeID, userID string) (Membership, error) {
	if userID == "" {
		return Membership{}, ErrNotParticipant
	}
	members, err := s.repo.ListMemberships(ctx, challengeID)
	if err != nil {
		return Membership{}, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return Membership{}, ErrNotParticipant
}

func (s *Service) newMembership(c Challenge, input JoinInput, now time.Time) (Membership, error) {
	m := Membership{
		ChallengeID: c.ID,
		UserID:      input.UserID,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		JoinedAt:    now,
	}
	if !c.IsRepeating {
		return m, nil
	}

	start := input.StartDate
	if start == "" {
		start = s.norm.LocalDate(now).String()
	}
	end := input.EndDate
	if end == "" && c.EndDate != "" {
		if r, ok := calendar.ResolveWindow(c.StartDate, c.EndDate); ok {
			if d, err := calendar.ParseDate(start); err == nil {
				end = d.AddDays(r.Days() - 1).String()
			}
		}
	}
	if _, ok := calendar.ResolveWindow(start, end); !ok {
		return Membership{}, fmt.Errorf("%w: invalid participant window %s..%s", ErrInvalidInput, start, end)
	}
	if err := validateSchedule(c.Type, start, end); err != nil {
		return Membership{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	m.StartDate, m.EndDate = start, end
	return m, nil
}

// withinWindow reports whether t falls on a day the membership covers. Open-ended windows
// only bound the start, except for repeating challenges, which stop at the horizon their
// entries are loaded over.
func (s *Service) withinWindow(c Challenge, m Membership, t time.Time) bool {
	r, ok := calendar.ResolveWindow(m.StartDate, m.EndDate)
	if !ok {
		return true
	}
	day := s.norm.LocalDate(t)
	if day.Before(r.Start) {
		return false
	}
	if m.EndDate == "" && !c.IsRepeating {
		return true
	}
	return !day.After(r.End)
}

// entriesFor loads a participant's full history, or only their own window for repeating
// challenges.
func (s *Service) entriesFor(ctx context.Context, c Challenge, m Membership) ([]scoring.Entry, error) {
	if !c.IsRepeating {
		return s.repo.ListEntries(ctx, m.UserID, c.ID)
	}
	r, ok := calendar.ResolveWindow(m.StartDate, m.EndDate)
	if !ok {
		return nil, nil
	}
	start, end := s.norm.Bounds(r)
	return s.repo.ListEntriesInRange(ctx, m.UserID, c.ID, start, end)
}

func (s *Service) buildObjectives(typ scoring.ChallengeType, inputs []ObjectiveInput) ([]scoring.Objective, error) {
	seen := make(map[string]bool, len(inputs))
	objectives := make([]scoring.Objective, 0, len(inputs))
	for _, in := range inputs {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = s.ids.NewID()
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate objective id %s", id)
		}
		seen[id] = true

		obj := scoring.Objective{
			ID:            id,
			Title:         strings.TrimSpace(in.Title),
			TargetValue:   in.TargetValue,
			Unit:          normalizeUnit(in.Unit),
			PointsPerUnit: in.PointsPerUnit,
		}
		if typ == scoring.TypeChecklist {
			obj.TargetValue = 1
			if obj.PointsPerUnit == 0 {
				obj.PointsPerUnit = 1
			}
		}
		objectives = append(objectives, obj)
	}
	return objectives, nil
}

// validateSchedule enforces that bounded weekly challenges cover whole Monday-Sunday weeks,
// or exactly seven days.
func validateSchedule(typ scoring.ChallengeType, start, end string) error {
	if typ != scoring.TypeWeekly || end == "" {
		return nil
	}
	r, ok := calendar.ResolveWindow(start, end)
	if !ok {
		return errors.New("endDate must be on or after startDate")
	}
	if calendar.IsFullWeeks(r.Start, r.End) || r.Days() == 7 {
		return nil
	}
	return errors.New("weekly challenges must run Monday to Sunday")
}

func definitionFor(c Challenge, m Membership) scoring.Challenge {
	def := c.Definition()
	if c.IsRepeating {
		def = def.WithWindow(m.Window())
	}
	return def
}

func participantIDs(members []Membership) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed", slog.String("topic", topic), slog.Any("error", err))
	}
}
