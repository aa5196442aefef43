package challenge

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
)

type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository instantiates a Firestore-backed repository.
//
// Layout: challenges/{id}, challenges/{id}/members/{userId},
// challenges/{id}/members/{userId}/bingoLines/{lineKey} and a flat entries collection.
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

const (
	challengesCollection = "challenges"
	membersCollection    = "members"
	entriesCollection    = "entries"
	bingoLinesCollection = "bingoLines"
)

type challengeDoc struct {
	Title        string              `firestore:"title"`
	Description  string              `firestore:"description"`
	Type         string              `firestore:"challengeType"`
	Objectives   []scoring.Objective `firestore:"objectives"`
	StartDate    string              `firestore:"startDate"`
	EndDate      string              `firestore:"endDate"`
	CappedPoints bool                `firestore:"cappedPoints"`
	IsRepeating  bool                `firestore:"isRepeating"`
	TotalPoints  float64             `firestore:"totalPoints"`
	CreatedBy    string              `firestore:"createdBy"`
	CreatedAt    time.Time           `firestore:"createdAt"`
	UpdatedAt    time.Time           `firestore:"updatedAt"`
}

type membershipDoc struct {
	StartDate string    `firestore:"startDate"`
	EndDate   string    `firestore:"endDate"`
	JoinedAt  time.Time `firestore:"joinedAt"`
}

func (r *firestoreRepository) challengeRef(challengeID string) *firestore.DocumentRef {
	return r.client.Collection(challengesCollection).Doc(challengeID)
}

func (r *firestoreRepository) memberRef(challengeID, userID string) *firestore.DocumentRef {
	return r.challengeRef(challengeID).Collection(membersCollection).Doc(userID)
}

func (r *firestoreRepository) entriesQuery(userID, challengeID string) firestore.Query {
	return r.client.Collection(entriesCollection).
		Where("userId", "==", userID).
		Where("challengeId", "==", challengeID)
}

func (r *firestoreRepository) CreateChallenge(ctx context.Context, c Challenge) error {
	_, err := r.challengeRef(c.ID).Create(ctx, toChallengeDoc(c))
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	return err
}

func (r *firestoreRepository) UpdateChallenge(ctx context.Context, c Challenge) error {
	_, err := r.challengeRef(c.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: c.Title},
		{Path: "description", Value: c.Description},
		{Path: "objectives", Value: c.Objectives},
		{Path: "totalPoints", Value: c.TotalPoints},
		{Path: "updatedAt", Value: c.UpdatedAt},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (r *firestoreRepository) GetChallenge(ctx context.Context, challengeID string) (Challenge, error) {
	doc, err := r.challengeRef(challengeID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Challenge{}, ErrNotFound
	}
	if err != nil {
		return Challenge{}, err
	}
	return snapshotToChallenge(doc)
}

func (r *firestoreRepository) ListChallenges(ctx context.Context) ([]Challenge, error) {
	iter := r.client.Collection(challengesCollection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]Challenge, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		c, err := snapshotToChallenge(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *firestoreRepository) AddMembership(ctx context.Context, m Membership) error {
	_, err := r.memberRef(m.ChallengeID, m.UserID).Create(ctx, membershipDoc{
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		JoinedAt:  m.JoinedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	return err
}

func (r *firestoreRepository) RemoveMembership(ctx context.Context, challengeID, userID string) error {
	ref := r.memberRef(challengeID, userID)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotParticipant
		}
		return err
	}
	_, err := ref.Delete(ctx)
	return err
}

func (r *firestoreRepository) ListMemberships(ctx context.Context, challengeID string) ([]Membership, error) {
	iter := r.challengeRef(challengeID).Collection(membersCollection).OrderBy("joinedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := make([]Membership, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var payload membershipDoc
		if err := doc.DataTo(&payload); err != nil {
			return nil, err
		}
		out = append(out, Membership{
			ChallengeID: challengeID,
			UserID:      doc.Ref.ID,
			StartDate:   payload.StartDate,
			EndDate:     payload.EndDate,
			JoinedAt:    payload.JoinedAt,
		})
	}
	return out, nil
}

func (r *firestoreRepository) InsertEntry(ctx context.Context, e scoring.Entry) error {
	_, err := r.client.Collection(entriesCollection).Doc(e.ID).Create(ctx, e)
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	return err
}

func (r *firestoreRepository) ListEntries(ctx context.Context, userID, challengeID string) ([]scoring.Entry, error) {
	query := r.entriesQuery(userID, challengeID).OrderBy("createdAt", firestore.Asc)
	return collectEntries(query.Documents(ctx))
}

func (r *firestoreRepository) ListEntriesInRange(ctx context.Context, userID, challengeID string, startInclusive, endExclusive time.Time) ([]scoring.Entry, error) {
	query := r.entriesQuery(userID, challengeID).
		Where("createdAt", ">=", startInclusive).
		Where("createdAt", "<", endExclusive).
		OrderBy("createdAt", firestore.Asc)
	return collectEntries(query.Documents(ctx))
}

// DeleteObjectiveEntries reads and deletes the matching entries in one transaction so a
// concurrent insert either lands before the reset or after it.
func (r *firestoreRepository) DeleteObjectiveEntries(ctx context.Context, userID, challengeID, objectiveID string) (int, error) {
	query := r.entriesQuery(userID, challengeID).Where("objectiveId", "==", objectiveID)

	deleted := 0
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		deleted = len(docs)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reset objective %s: %w", objectiveID, err)
	}
	return deleted, nil
}

func (r *firestoreRepository) ListAnnouncedLines(ctx context.Context, userID, challengeID string) (map[string]bool, error) {
	iter := r.memberRef(challengeID, userID).Collection(bingoLinesCollection).Documents(ctx)
	defer iter.Stop()

	out := make(map[string]bool)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out[doc.Ref.ID] = true
	}
	return out, nil
}

func (r *firestoreRepository) AddAnnouncedLine(ctx context.Context, userID, challengeID, lineKey string, at time.Time) error {
	_, err := r.memberRef(challengeID, userID).Collection(bingoLinesCollection).Doc(lineKey).Create(ctx, map[string]any{
		"announcedAt": at,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	return err
}

func collectEntries(iter *firestore.DocumentIterator) ([]scoring.Entry, error) {
	defer iter.Stop()

	out := make([]scoring.Entry, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var e scoring.Entry
		if err := doc.DataTo(&e); err != nil {
			return nil, err
		}
		e.ID = doc.Ref.ID
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, nil
}

func toChallengeDoc(c Challenge) challengeDoc {
	return challengeDoc{
		Title:        c.Title,
		Description:  c.Description,
		Type:         string(c.Type),
		Objectives:   c.Objectives,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		CappedPoints: c.CappedPoints,
		IsRepeating:  c.IsRepeating,
		TotalPoints:  c.TotalPoints,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func snapshotToChallenge(doc *firestore.DocumentSnapshot) (Challenge, error) {
	var payload challengeDoc
	if err := doc.DataTo(&payload); err != nil {
		return Challenge{}, err
	}
	return Challenge{
		ID:           doc.Ref.ID,
		Title:        payload.Title,
		Description:  payload.Description,
		Type:         scoring.StoredChallengeType(payload.Type),
		Objectives:   payload.Objectives,
		StartDate:    payload.StartDate,
		EndDate:      payload.EndDate,
		CappedPoints: payload.CappedPoints,
		IsRepeating:  payload.IsRepeating,
		TotalPoints:  payload.TotalPoints,
		CreatedBy:    payload.CreatedBy,
		CreatedAt:    payload.CreatedAt,
		UpdatedAt:    payload.UpdatedAt,
	}, nil
}
