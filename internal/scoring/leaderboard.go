package scoring

import (
	"sort"
	"time"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

// LeaderboardEntry is one participant's standing. Score is the ranking score for the
// challenge's mode; UncappedScore is always reported.
type LeaderboardEntry struct {
	UserID          string     `json:"userId"`
	Score           float64    `json:"score"`
	UncappedScore   float64    `json:"uncappedScore"`
	Position        int        `json:"position"`
	CompletionOrder *int       `json:"completionOrder,omitempty"`
	CompletionTime  *time.Time `json:"completionTime,omitempty"`
}

// RankInput is a snapshot of everything needed to rank one challenge.
type RankInput struct {
	Challenge Challenge
	// Participants is merged with Challenge.Participants.
	Participants []string
	// Entries holds each participant's complete entry set, keyed by user id.
	Entries map[string][]Entry
	// Windows holds per-participant windows for repeating challenges.
	Windows    map[string]Window
	Normalizer calendar.Normalizer
}

// RankLeaderboard scores every participant and orders them.
//
// Without capped points rows sort by score. With capped points participants who completed the
// challenge come first by completion time, the rest follow by score. Positions use competition
// ranking: rows sharing the active sort key share a position and the next key takes index+1.
// CompletionOrder numbers completed participants by completion time in both modes.
func RankLeaderboard(in RankInput) []LeaderboardEntry {
	c := in.Challenge
	capped := c.CappedPoints
	byFinish := capped && len(c.Objectives) > 0

	users := participants(c.Participants, in.Participants)
	rows := make([]LeaderboardEntry, 0, len(users))
	for _, userID := range users {
		uc := c
		if c.IsRepeating {
			uc = c.WithWindow(in.Windows[userID])
		}
		entries := in.Entries[userID]
		points := ComputePoints(uc, AggregateProgress(uc, entries, in.Normalizer))
		rows = append(rows, LeaderboardEntry{
			UserID:         userID,
			Score:          points.Score(capped),
			UncappedScore:  points.Uncapped,
			CompletionTime: ComputeCompletionTime(uc, entries, in.Normalizer),
		})
	}

	assignCompletionOrder(rows)

	if byFinish {
		sort.SliceStable(rows, func(i, j int) bool { return finishLess(rows[i], rows[j]) })
	} else {
		sort.SliceStable(rows, func(i, j int) bool { return scoreLess(rows[i], rows[j]) })
	}

	for i := range rows {
		if i > 0 && sameKey(rows[i-1], rows[i], byFinish) {
			rows[i].Position = rows[i-1].Position
			continue
		}
		rows[i].Position = i + 1
	}
	return rows
}

func participants(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func assignCompletionOrder(rows []LeaderboardEntry) {
	finished := make([]int, 0, len(rows))
	for i := range rows {
		if rows[i].CompletionTime != nil {
			finished = append(finished, i)
		}
	}
	sort.SliceStable(finished, func(a, b int) bool { return finishLess(rows[finished[a]], rows[finished[b]]) })
	for n, idx := range finished {
		order := n + 1
		rows[idx].CompletionOrder = &order
	}
}

func scoreLess(a, b LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.UserID < b.UserID
}

func finishLess(a, b LeaderboardEntry) bool {
	switch {
	case a.CompletionTime != nil && b.CompletionTime == nil:
		return true
	case a.CompletionTime == nil && b.CompletionTime != nil:
		return false
	case a.CompletionTime != nil && !a.CompletionTime.Equal(*b.CompletionTime):
		return a.CompletionTime.Before(*b.CompletionTime)
	}
	return scoreLess(a, b)
}

func sameKey(a, b LeaderboardEntry, byFinish bool) bool {
	if !byFinish {
		return a.Score == b.Score
	}
	if (a.CompletionTime == nil) != (b.CompletionTime == nil) {
		return false
	}
	if a.CompletionTime != nil {
		return a.CompletionTime.Equal(*b.CompletionTime)
	}
	return a.Score == b.Score
}
