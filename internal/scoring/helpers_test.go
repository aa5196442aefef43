package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

var utc = calendar.NewNormalizer(time.UTC)

func ts(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return parsed
}

func entry(t *testing.T, objectiveID string, value float64, at string) Entry {
	t.Helper()
	created := ts(t, at)
	return Entry{
		ID:          fmt.Sprintf("%s-%s-%v", objectiveID, at, value),
		UserID:      "user-1",
		ChallengeID: "challenge-1",
		ObjectiveID: objectiveID,
		Value:       value,
		CreatedAt:   created,
	}
}

func forUser(userID string, entries ...Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.UserID = userID
		e.ID = userID + "/" + e.ID
		out[i] = e
	}
	return out
}

func reversed(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
