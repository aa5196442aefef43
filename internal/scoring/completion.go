package scoring

import (
	"time"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
)

// ComputeCompletionTime replays entries in time order and returns the CreatedAt of the entry
// that first made every objective complete. It returns nil when that never happens, when the
// challenge has no objectives, or when a date-based challenge has unusable dates.
//
// For repeating challenges pass c.WithWindow(participantWindow).
func ComputeCompletionTime(c Challenge, entries []Entry, norm calendar.Normalizer) *time.Time {
	if len(c.Objectives) == 0 {
		return nil
	}
	t := newTally(c, norm)
	for _, e := range chronological(entries) {
		if !t.add(e) {
			continue
		}
		if t.complete(t.progress()) {
			at := e.CreatedAt.UTC()
			return &at
		}
	}
	return nil
}
