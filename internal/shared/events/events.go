package events

import (
	"context"
	"log/slog"
	"time"
)

// Topic names used for challenge lifecycle events.
const (
	TopicChallengeEvents = "challenge.events"
	TopicProgressEvents  = "progress.events"
)

// ChallengeCompleted is emitted the first time a participant satisfies a challenge.
type ChallengeCompleted struct {
	ChallengeID string    `json:"challengeId"`
	UserID      string    `json:"userId"`
	CompletedAt time.Time `json:"completedAt"`
}

// BingoLineCompleted is emitted when a bingo row, column or diagonal is announced.
type BingoLineCompleted struct {
	ChallengeID string    `json:"challengeId"`
	UserID      string    `json:"userId"`
	LineKey     string    `json:"lineKey"`
	AnnouncedAt time.Time `json:"announcedAt"`
}

// ObjectiveReset is emitted after every entry for a (user, challenge, objective) is deleted.
type ObjectiveReset struct {
	ChallengeID    string    `json:"challengeId"`
	UserID         string    `json:"userId"`
	ObjectiveID    string    `json:"objectiveId"`
	DeletedEntries int       `json:"deletedEntries"`
	ResetAt        time.Time `json:"resetAt"`
}

// Publisher delivers event payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a Publisher that writes events to the structured log.
func NewLogPublisher(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if p.logger == nil {
		return nil
	}
	p.logger.InfoContext(ctx, "event published", slog.String("topic", topic), slog.Any("payload", payload))
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }
