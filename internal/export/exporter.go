// Package export writes leaderboard snapshots to Cloud Storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
)

// DefaultURLTTL is how long a snapshot's signed URL stays valid.
const DefaultURLTTL = 24 * time.Hour

// Snapshot is the document written for one export.
type Snapshot struct {
	ChallengeID string                     `json:"challengeId"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	Standings   []scoring.LeaderboardEntry `json:"standings"`
}

// Result describes an uploaded snapshot.
type Result struct {
	ObjectPath string    `json:"objectPath"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Exporter uploads snapshots.
type Exporter interface {
	Export(ctx context.Context, snapshot Snapshot) (Result, error)
}

// objectStore is the slice of Cloud Storage the exporter needs.
type objectStore interface {
	Write(ctx context.Context, objectPath, contentType string, data io.Reader) error
	SignedURL(objectPath string, expires time.Time) (string, error)
}

type gcsStore struct {
	client *storage.Client
	bucket string
}

func (s *gcsStore) Write(ctx context.Context, objectPath, contentType string, data io.Reader) error {
	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "private, max-age=300"

	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to storage: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (s *gcsStore) SignedURL(objectPath string, expires time.Time) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

// Service is the Cloud Storage backed Exporter.
type Service struct {
	store  objectStore
	ttl    time.Duration
	now    func() time.Time
	closer func() error
}

// NewService creates a storage client for bucketName.
func NewService(ctx context.Context, bucketName string, ttl time.Duration) (*Service, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	svc := newService(&gcsStore{client: client, bucket: bucketName}, ttl)
	svc.closer = client.Close
	return svc, nil
}

func newService(store objectStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// Export uploads the snapshot as JSON under leaderboards/<challenge>/<timestamp>.json and
// returns a signed download URL.
func (s *Service) Export(ctx context.Context, snapshot Snapshot) (Result, error) {
	if snapshot.ChallengeID == "" {
		return Result{}, fmt.Errorf("challenge id is required")
	}
	now := s.now().UTC()
	if snapshot.GeneratedAt.IsZero() {
		snapshot.GeneratedAt = now
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}

	objectPath := fmt.Sprintf("leaderboards/%s/%s.json", snapshot.ChallengeID, snapshot.GeneratedAt.UTC().Format("20060102T150405Z"))
	if err := s.store.Write(ctx, objectPath, "application/json", bytes.NewReader(body)); err != nil {
		return Result{}, err
	}

	expires := now.Add(s.ttl)
	url, err := s.store.SignedURL(objectPath, expires)
	if err != nil {
		return Result{}, err
	}
	return Result{ObjectPath: objectPath, URL: url, ExpiresAt: expires}, nil
}

// Close closes the storage client.
func (s *Service) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
