package challenge

import (
	"time"

	"github.com/google/uuid"
)

// storePrecision matches Postgres timestamptz so entry timestamps compare equal across
// backends and replay tie-breaks stay stable.
const storePrecision = time.Microsecond

type utcClock struct{}

// NewSystemClock returns the wall clock in UTC at store precision.
func NewSystemClock() Clock {
	return utcClock{}
}

func (utcClock) Now() time.Time {
	return time.Now().UTC().Truncate(storePrecision)
}

type timeOrderedIDs struct{}

// NewUUIDGenerator returns time-ordered v7 UUIDs, so entry ids sort by insertion. It falls
// back to v4 when the v7 source fails.
func NewUUIDGenerator() IDGenerator {
	return timeOrderedIDs{}
}

func (timeOrderedIDs) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
