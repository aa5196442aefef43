package scoring

import (
	"testing"
	"time"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

func TestAggregateProgress_StandardSumsAndIgnoresOrphans(t *testing.T) {
	c := Challenge{
		Type: TypeStandard,
		Objectives: []Objective{
			{ID: "run", TargetValue: 20, PointsPerUnit: 1},
			{ID: "swim", TargetValue: 5, PointsPerUnit: 2},
		},
	}
	entries := []Entry{
		entry(t, "run", 4, "2024-03-01T06:00:00Z"),
		entry(t, "run", 2.5, "2024-03-02T06:00:00Z"),
		entry(t, "legacy", 99, "2024-03-02T07:00:00Z"),
	}

	got := AggregateProgress(c, entries, utc)
	if got["run"] != 6.5 {
		t.Fatalf("run = %v, want 6.5", got["run"])
	}
	if v, ok := got["swim"]; !ok || v != 0 {
		t.Fatalf("swim should be present with 0, got %v (present=%v)", v, ok)
	}
	if _, ok := got["legacy"]; ok {
		t.Fatalf("orphaned objective should not be aggregated")
	}
}

func TestAggregateProgress_CompletionCountsDistinctDays(t *testing.T) {
	c := Challenge{Type: TypeCompletion, Objectives: []Objective{{ID: "stretch", TargetValue: 30, PointsPerUnit: 1}}}
	entries := []Entry{
		entry(t, "stretch", 1, "2024-03-01T06:00:00Z"),
		entry(t, "stretch", 1, "2024-03-01T12:00:00Z"),
		entry(t, "stretch", 1, "2024-03-01T18:00:00Z"),
		entry(t, "stretch", 1, "2024-03-02T06:00:00Z"),
		entry(t, "stretch", 1, "2024-03-05T06:00:00Z"),
	}

	if got := AggregateProgress(c, entries, utc)["stretch"]; got != 3 {
		t.Fatalf("distinct days = %v, want 3", got)
	}
}

func TestAggregateProgress_CompletionUsesLocalDay(t *testing.T) {
	c := Challenge{Type: TypeCompletion, Objectives: []Objective{{ID: "read", TargetValue: 30, PointsPerUnit: 1}}}
	// Same UTC day, but the second one is already the next day at UTC+7.
	entries := []Entry{
		entry(t, "read", 1, "2024-03-01T10:00:00Z"),
		entry(t, "read", 1, "2024-03-01T18:00:00Z"),
	}

	if got := AggregateProgress(c, entries, utc)["read"]; got != 1 {
		t.Fatalf("UTC days = %v, want 1", got)
	}
	wib := calendar.NewNormalizer(time.FixedZone("WIB", 7*3600))
	if got := AggregateProgress(c, entries, wib)["read"]; got != 2 {
		t.Fatalf("local days = %v, want 2", got)
	}
}

func TestAggregateProgress_WeeklyCountsWeeksAtThreshold(t *testing.T) {
	c := Challenge{
		Type:       TypeWeekly,
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-31",
		Objectives: []Objective{{ID: "gym", TargetValue: 3, PointsPerUnit: 10}},
	}
	entries := []Entry{
		entry(t, "gym", 1, "2024-03-04T08:00:00Z"),
		entry(t, "gym", 1, "2024-03-06T08:00:00Z"),
	}
	if got := AggregateProgress(c, entries, utc)["gym"]; got != 0 {
		t.Fatalf("week summing to 2 should not count, got %v", got)
	}

	entries = append(entries, entry(t, "gym", 1, "2024-03-10T20:00:00Z"))
	if got := AggregateProgress(c, entries, utc)["gym"]; got != 1 {
		t.Fatalf("week summing to 3 should count, got %v", got)
	}

	// Monday of the next week starts a new bucket.
	entries = append(entries, entry(t, "gym", 2, "2024-03-11T08:00:00Z"))
	if got := AggregateProgress(c, entries, utc)["gym"]; got != 1 {
		t.Fatalf("partial second week should not count, got %v", got)
	}
	entries = append(entries, entry(t, "gym", 5, "2024-03-12T08:00:00Z"))
	if got := AggregateProgress(c, entries, utc)["gym"]; got != 2 {
		t.Fatalf("two complete weeks expected, got %v", got)
	}
}

func TestAggregateProgress_ChecklistIsPresence(t *testing.T) {
	c := Challenge{
		Type: TypeChecklist,
		Objectives: []Objective{
			{ID: "museum", TargetValue: 1, PointsPerUnit: 1},
			{ID: "hike", TargetValue: 1, PointsPerUnit: 1},
		},
	}
	entries := []Entry{
		entry(t, "museum", 7, "2024-03-01T08:00:00Z"),
		entry(t, "museum", 3, "2024-03-02T08:00:00Z"),
	}

	got := AggregateProgress(c, entries, utc)
	if got["museum"] != 1 || got["hike"] != 0 {
		t.Fatalf("unexpected checklist progress: %v", got)
	}
}

func TestAggregateProgress_IndependentOfEntryOrder(t *testing.T) {
	entries := []Entry{
		entry(t, "a", 0.1, "2024-03-04T08:00:00Z"),
		entry(t, "a", 0.2, "2024-03-04T08:00:00Z"),
		entry(t, "a", 0.3, "2024-03-05T08:00:00Z"),
		entry(t, "b", 1.7, "2024-03-11T08:00:00Z"),
		entry(t, "b", 2.9, "2024-03-12T23:59:59Z"),
		entry(t, "a", 0.7, "2024-03-13T00:00:00Z"),
	}
	rotated := append(append([]Entry{}, entries[3:]...), entries[:3]...)

	for _, typ := range []ChallengeType{TypeStandard, TypeBingo, TypeCompletion, TypeWeekly, TypeChecklist} {
		c := Challenge{
			Type:      typ,
			StartDate: "2024-03-04",
			EndDate:   "2024-03-17",
			Objectives: []Objective{
				{ID: "a", TargetValue: 0.6, PointsPerUnit: 1},
				{ID: "b", TargetValue: 4, PointsPerUnit: 1},
			},
		}
		want := AggregateProgress(c, entries, utc)
		for _, input := range [][]Entry{reversed(entries), rotated} {
			got := AggregateProgress(c, input, utc)
			for id, v := range want {
				if got[id] != v {
					t.Fatalf("%s: objective %s = %v, want %v", typ, id, got[id], v)
				}
			}
		}
	}
}

func TestDescribeProgress_Breakdowns(t *testing.T) {
	weekly := Challenge{
		Type:       TypeWeekly,
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-17",
		Objectives: []Objective{{ID: "gym", TargetValue: 2, PointsPerUnit: 5}},
	}
	entries := []Entry{
		entry(t, "gym", 1, "2024-03-05T08:00:00Z"),
		entry(t, "gym", 1, "2024-03-06T08:00:00Z"),
		entry(t, "gym", 1, "2024-03-12T08:00:00Z"),
	}

	got := DescribeProgress(weekly, entries, utc)
	if len(got) != 1 {
		t.Fatalf("expected one objective, got %d", len(got))
	}
	if got[0].CurrentValue != 1 || got[0].Weeks["2024-03-04"] != 2 || got[0].Weeks["2024-03-11"] != 1 {
		t.Fatalf("unexpected weekly breakdown: %+v", got[0])
	}
	if got[0].Points.Capped != 5 || got[0].Percent != 50 {
		t.Fatalf("unexpected points/percent: %+v", got[0])
	}

	bingo := Challenge{Type: TypeBingo, Objectives: []Objective{{ID: "cell", TargetValue: 2, PointsPerUnit: 1}}}
	cells := []Entry{
		entry(t, "cell", 3, "2024-03-05T08:00:00Z"),
		entry(t, "cell", 2, "2024-03-06T08:00:00Z"),
	}
	if got := DescribeProgress(bingo, cells, utc); got[0].CompletionCount != 2 {
		t.Fatalf("completion count = %d, want 2", got[0].CompletionCount)
	}
}

func TestDescribeProgress_WindowGrid(t *testing.T) {
	tests := []struct {
		name       string
		challenge  Challenge
		entries    []Entry
		wantDays   []DayMark
		wantWeeks  map[string]float64
		wantLogged []string
	}{
		{
			name: "completion marks every window day",
			challenge: Challenge{
				Type:       TypeCompletion,
				StartDate:  "2024-03-04",
				EndDate:    "2024-03-07",
				Objectives: []Objective{{ID: "read", TargetValue: 4, PointsPerUnit: 1}},
			},
			entries: []Entry{
				entry(t, "read", 1, "2024-03-05T21:00:00Z"),
				entry(t, "read", 2, "2024-03-05T22:00:00Z"),
				entry(t, "read", 1, "2024-03-07T06:00:00Z"),
			},
			wantDays: []DayMark{
				{Date: "2024-03-04"},
				{Date: "2024-03-05", Logged: true},
				{Date: "2024-03-06"},
				{Date: "2024-03-07", Logged: true},
			},
			wantLogged: []string{"2024-03-05", "2024-03-07"},
		},
		{
			name: "weekly lists empty weeks",
			challenge: Challenge{
				Type:       TypeWeekly,
				StartDate:  "2024-03-06",
				EndDate:    "2024-03-24",
				Objectives: []Objective{{ID: "gym", TargetValue: 1, PointsPerUnit: 1}},
			},
			entries: []Entry{
				entry(t, "gym", 3, "2024-03-13T08:00:00Z"),
			},
			wantWeeks: map[string]float64{"2024-03-04": 0, "2024-03-11": 3, "2024-03-18": 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DescribeProgress(tc.challenge, tc.entries, utc)[0]
			if len(got.Calendar) != len(tc.wantDays) {
				t.Fatalf("calendar = %+v, want %+v", got.Calendar, tc.wantDays)
			}
			for i, want := range tc.wantDays {
				if got.Calendar[i] != want {
					t.Fatalf("calendar[%d] = %+v, want %+v", i, got.Calendar[i], want)
				}
			}
			if len(got.Days) != len(tc.wantLogged) {
				t.Fatalf("days = %v, want %v", got.Days, tc.wantLogged)
			}
			for i, day := range tc.wantLogged {
				if got.Days[i] != day {
					t.Fatalf("days = %v, want %v", got.Days, tc.wantLogged)
				}
			}
			if len(got.Weeks) != len(tc.wantWeeks) {
				t.Fatalf("weeks = %v, want %v", got.Weeks, tc.wantWeeks)
			}
			for week, sum := range tc.wantWeeks {
				if v, ok := got.Weeks[week]; !ok || v != sum {
					t.Fatalf("weeks = %v, want %v", got.Weeks, tc.wantWeeks)
				}
			}
		})
	}
}

func TestDescribeProgress_WeekBucketsFollowTimezone(t *testing.T) {
	ahead := calendar.NewNormalizer(time.FixedZone("UTC+9", 9*60*60))
	c := Challenge{
		Type:       TypeWeekly,
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-17",
		Objectives: []Objective{{ID: "gym", TargetValue: 1, PointsPerUnit: 1}},
	}
	// Sunday 20:00 UTC is already Monday at UTC+9.
	got := DescribeProgress(c, []Entry{entry(t, "gym", 1, "2024-03-10T20:00:00Z")}, ahead)[0]
	if got.Weeks["2024-03-11"] != 1 || got.Weeks["2024-03-04"] != 0 {
		t.Fatalf("weeks = %v, want the entry in the week of 2024-03-11", got.Weeks)
	}
}
