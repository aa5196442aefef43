package challenge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
)

type memoryRepository struct {
	mu          sync.RWMutex
	challenges  map[string]Challenge
	memberships map[string]map[string]Membership     // challengeID -> userID -> Membership
	entries     map[progressKey][]scoring.Entry      // (userID, challengeID) -> entries
	lines       map[progressKey]map[string]time.Time // (userID, challengeID) -> line key -> announced at
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		challenges:  make(map[string]Challenge),
		memberships: make(map[string]map[string]Membership),
		entries:     make(map[progressKey][]scoring.Entry),
		lines:       make(map[progressKey]map[string]time.Time),
	}
}

func (r *memoryRepository) CreateChallenge(_ context.Context, c Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.challenges[c.ID]; exists {
		return ErrConflict
	}
	r.challenges[c.ID] = cloneChallenge(c)
	return nil
}

func (r *memoryRepository) UpdateChallenge(_ context.Context, c Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.challenges[c.ID]; !exists {
		return ErrNotFound
	}
	r.challenges[c.ID] = cloneChallenge(c)
	return nil
}

func (r *memoryRepository) GetChallenge(_ context.Context, challengeID string) (Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.challenges[challengeID]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return cloneChallenge(c), nil
}

func (r *memoryRepository) ListChallenges(_ context.Context) ([]Challenge, error) {
	r.mu.RLock()
	out := make([]Challenge, 0, len(r.challenges))
	for _, c := range r.challenges {
		out = append(out, cloneChallenge(c))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepository) AddMembership(_ context.Context, m Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.challenges[m.ChallengeID]; !ok {
		return ErrNotFound
	}
	members, ok := r.memberships[m.ChallengeID]
	if !ok {
		members = make(map[string]Membership)
		r.memberships[m.ChallengeID] = members
	}
	if _, exists := members[m.UserID]; exists {
		return ErrConflict
	}
	members[m.UserID] = m
	return nil
}

func (r *memoryRepository) RemoveMembership(_ context.Context, challengeID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.memberships[challengeID]
	if !ok {
		return ErrNotParticipant
	}
	if _, exists := members[userID]; !exists {
		return ErrNotParticipant
	}
	delete(members, userID)
	return nil
}

func (r *memoryRepository) ListMemberships(_ context.Context, challengeID string) ([]Membership, error) {
	r.mu.RLock()
	out := make([]Membership, 0, len(r.memberships[challengeID]))
	for _, m := range r.memberships[challengeID] {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *memoryRepository) InsertEntry(_ context.Context, e scoring.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{userID: e.UserID, challengeID: e.ChallengeID}
	for _, existing := range r.entries[key] {
		if existing.ID == e.ID {
			return ErrConflict
		}
	}
	r.entries[key] = append(r.entries[key], e)
	return nil
}

func (r *memoryRepository) ListEntries(_ context.Context, userID, challengeID string) ([]scoring.Entry, error) {
	return r.snapshot(userID, challengeID, func(scoring.Entry) bool { return true }), nil
}

func (r *memoryRepository) ListEntriesInRange(_ context.Context, userID, challengeID string, startInclusive, endExclusive time.Time) ([]scoring.Entry, error) {
	return r.snapshot(userID, challengeID, func(e scoring.Entry) bool {
		return !e.CreatedAt.Before(startInclusive) && e.CreatedAt.Before(endExclusive)
	}), nil
}

func (r *memoryRepository) snapshot(userID, challengeID string, keep func(scoring.Entry) bool) []scoring.Entry {
	r.mu.RLock()
	out := make([]scoring.Entry, 0)
	for _, e := range r.entries[progressKey{userID: userID, challengeID: challengeID}] {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeleteObjectiveEntries holds the write lock for the whole removal, so no insert can
// interleave with a reset.
func (r *memoryRepository) DeleteObjectiveEntries(_ context.Context, userID, challengeID, objectiveID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{userID: userID, challengeID: challengeID}
	kept := r.entries[key][:0:0]
	deleted := 0
	for _, e := range r.entries[key] {
		if e.ObjectiveID == objectiveID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries[key] = kept
	return deleted, nil
}

func (r *memoryRepository) ListAnnouncedLines(_ context.Context, userID, challengeID string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool)
	for key := range r.lines[progressKey{userID: userID, challengeID: challengeID}] {
		out[key] = true
	}
	return out, nil
}

func (r *memoryRepository) AddAnnouncedLine(_ context.Context, userID, challengeID, lineKey string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{userID: userID, challengeID: challengeID}
	lines, ok := r.lines[key]
	if !ok {
		lines = make(map[string]time.Time)
		r.lines[key] = lines
	}
	if _, exists := lines[lineKey]; exists {
		return ErrConflict
	}
	lines[lineKey] = at
	return nil
}

func cloneChallenge(c Challenge) Challenge {
	c.Objectives = append([]scoring.Objective(nil), c.Objectives...)
	c.Participants = nil
	return c
}
