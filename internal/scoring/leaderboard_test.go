package scoring

import (
	"testing"
)

func positions(rows []LeaderboardEntry) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Position
	}
	return out
}

func TestRankLeaderboard_CompetitionRanking(t *testing.T) {
	c := Challenge{
		Type:         TypeStandard,
		Participants: []string{"carol", "alice", "bob"},
		Objectives:   []Objective{{ID: "km", TargetValue: 100, PointsPerUnit: 1}},
	}
	rows := RankLeaderboard(RankInput{
		Challenge: c,
		Entries: map[string][]Entry{
			"alice": forUser("alice", entry(t, "km", 50, "2024-03-01T08:00:00Z")),
			"bob":   forUser("bob", entry(t, "km", 50, "2024-03-02T08:00:00Z")),
			"carol": forUser("carol", entry(t, "km", 30, "2024-03-01T08:00:00Z")),
		},
		Normalizer: utc,
	})

	got := positions(rows)
	if len(got) != 3 || got[0] != 1 || got[1] != 1 || got[2] != 3 {
		t.Fatalf("positions = %v, want [1 1 3]", got)
	}
	if rows[0].UserID != "alice" || rows[1].UserID != "bob" || rows[2].UserID != "carol" {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestRankLeaderboard_KeepsParticipantsWithoutEntries(t *testing.T) {
	c := Challenge{
		Type:         TypeStandard,
		Participants: []string{"alice", "bob"},
		Objectives:   []Objective{{ID: "km", TargetValue: 10, PointsPerUnit: 1}},
	}
	rows := RankLeaderboard(RankInput{
		Challenge:    c,
		Participants: []string{"dave", "alice"},
		Entries: map[string][]Entry{
			"alice":    forUser("alice", entry(t, "km", 4, "2024-03-01T08:00:00Z")),
			"intruder": forUser("intruder", entry(t, "km", 40, "2024-03-01T08:00:00Z")),
		},
		Normalizer: utc,
	})

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].UserID != "alice" || rows[0].Score != 4 {
		t.Fatalf("unexpected leader %+v", rows[0])
	}
	for _, r := range rows[1:] {
		if r.Score != 0 || r.UncappedScore != 0 || r.Position != 2 {
			t.Fatalf("participant without entries should tie at 0: %+v", r)
		}
	}
}

func TestRankLeaderboard_CappedSortsByFinishOrder(t *testing.T) {
	c := Challenge{
		Type:         TypeStandard,
		CappedPoints: true,
		Participants: []string{"ana", "ben", "cy", "dee"},
		Objectives:   []Objective{{ID: "km", TargetValue: 10, PointsPerUnit: 1}},
	}
	rows := RankLeaderboard(RankInput{
		Challenge: c,
		Entries: map[string][]Entry{
			"ana": forUser("ana", entry(t, "km", 10, "2024-03-01T10:00:00Z")),
			"ben": forUser("ben",
				entry(t, "km", 5, "2024-03-01T09:00:00Z"),
				entry(t, "km", 8, "2024-03-01T11:00:00Z"),
			),
			"cy": forUser("cy", entry(t, "km", 3, "2024-03-01T08:00:00Z")),
		},
		Normalizer: utc,
	})

	wantOrder := []string{"ana", "ben", "cy", "dee"}
	for i, want := range wantOrder {
		if rows[i].UserID != want {
			t.Fatalf("row %d = %s, want %s", i, rows[i].UserID, want)
		}
		if rows[i].Position != i+1 {
			t.Fatalf("row %d position = %d, want %d", i, rows[i].Position, i+1)
		}
	}

	// ben overachieved but finished second.
	if rows[1].UncappedScore <= rows[0].UncappedScore {
		t.Fatalf("expected ben to have the higher uncapped score: %+v", rows[:2])
	}
	if rows[0].Score != 10 || rows[1].Score != 10 {
		t.Fatalf("capped scores should both be 10: %+v", rows[:2])
	}
	for i := 0; i < 2; i++ {
		if rows[i].CompletionOrder == nil || *rows[i].CompletionOrder != rows[i].Position {
			t.Fatalf("completion order should match position under capped sort: %+v", rows[i])
		}
	}
	if rows[2].CompletionOrder != nil || rows[3].CompletionOrder != nil || rows[3].CompletionTime != nil {
		t.Fatalf("unfinished participants carry no completion data: %+v", rows[2:])
	}
}

func TestRankLeaderboard_UncappedStillReportsCompletionOrder(t *testing.T) {
	c := Challenge{
		Type:         TypeStandard,
		Participants: []string{"ana", "ben"},
		Objectives:   []Objective{{ID: "km", TargetValue: 10, PointsPerUnit: 1}},
	}
	rows := RankLeaderboard(RankInput{
		Challenge: c,
		Entries: map[string][]Entry{
			"ana": forUser("ana", entry(t, "km", 10, "2024-03-01T10:00:00Z")),
			"ben": forUser("ben",
				entry(t, "km", 5, "2024-03-01T09:00:00Z"),
				entry(t, "km", 8, "2024-03-01T11:00:00Z"),
			),
		},
		Normalizer: utc,
	})

	if rows[0].UserID != "ben" || rows[0].Position != 1 {
		t.Fatalf("ben leads on score: %+v", rows)
	}
	if rows[0].CompletionOrder == nil || *rows[0].CompletionOrder != 2 {
		t.Fatalf("ben finished second: %+v", rows[0])
	}
	if rows[1].CompletionOrder == nil || *rows[1].CompletionOrder != 1 {
		t.Fatalf("ana finished first: %+v", rows[1])
	}
}

func TestRankLeaderboard_ZeroObjectives(t *testing.T) {
	c := Challenge{Type: TypeStandard, CappedPoints: true, Participants: []string{"b", "a"}}
	rows := RankLeaderboard(RankInput{
		Challenge:  c,
		Entries:    map[string][]Entry{"a": forUser("a", entry(t, "km", 3, "2024-03-01T10:00:00Z"))},
		Normalizer: utc,
	})

	for _, r := range rows {
		if r.Score != 0 || r.Position != 1 || r.CompletionOrder != nil {
			t.Fatalf("unexpected row %+v", r)
		}
	}
}

func TestRankLeaderboard_RepeatingUsesParticipantWindows(t *testing.T) {
	c := Challenge{
		Type:         TypeCompletion,
		CappedPoints: true,
		IsRepeating:  true,
		StartDate:    "2024-01-01",
		EndDate:      "2024-12-31",
		Participants: []string{"ana", "ben"},
		Objectives:   []Objective{{ID: "walk", TargetValue: 2, PointsPerUnit: 1}},
	}
	walks := []Entry{
		entry(t, "walk", 1, "2024-03-01T08:00:00Z"),
		entry(t, "walk", 1, "2024-03-02T08:00:00Z"),
	}
	rows := RankLeaderboard(RankInput{
		Challenge: c,
		Entries: map[string][]Entry{
			"ana": forUser("ana", walks...),
			"ben": forUser("ben", walks...),
		},
		Windows: map[string]Window{
			"ben": {Start: "2024-03-01", End: "2024-03-02"},
		},
		Normalizer: utc,
	})

	if rows[0].UserID != "ben" || rows[0].CompletionTime == nil {
		t.Fatalf("ben completes within their own window: %+v", rows)
	}
	if rows[1].UserID != "ana" || rows[1].CompletionTime != nil || rows[1].Position != 2 {
		t.Fatalf("ana has not completed the yearly window: %+v", rows[1])
	}
}
