package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlwoop/saiko-app-sub000/internal/scoring"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Schema creates the tables the Postgres repository reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS challenges (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	challenge_type TEXT NOT NULL,
	objectives     JSONB NOT NULL,
	start_date     TEXT NOT NULL,
	end_date       TEXT NOT NULL DEFAULT '',
	capped_points  BOOLEAN NOT NULL DEFAULT FALSE,
	is_repeating   BOOLEAN NOT NULL DEFAULT FALSE,
	total_points   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_by     TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
	challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL,
	start_date   TEXT NOT NULL,
	end_date     TEXT NOT NULL DEFAULT '',
	joined_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (challenge_id, user_id)
);

CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	challenge_id TEXT NOT NULL,
	objective_id TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL CHECK (value <> 0),
	created_at   TIMESTAMPTZ NOT NULL,
	notes        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS entries_user_challenge_created_idx
	ON entries (user_id, challenge_id, created_at);

CREATE TABLE IF NOT EXISTS bingo_lines (
	user_id      TEXT NOT NULL,
	challenge_id TEXT NOT NULL,
	line_key     TEXT NOT NULL,
	announced_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, challenge_id, line_key)
);
`

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository instantiates a repository over the entries/challenges tables.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Migrate applies Schema. It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const challengeColumns = `id, title, description, challenge_type, objectives, start_date, end_date,
	capped_points, is_repeating, total_points, created_by, created_at, updated_at`

func (r *postgresRepository) CreateChallenge(ctx context.Context, c Challenge) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Title, c.Description, string(c.Type), c.Objectives, c.StartDate, c.EndDate,
		c.CappedPoints, c.IsRepeating, c.TotalPoints, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	return translatePgError(err)
}

func (r *postgresRepository) UpdateChallenge(ctx context.Context, c Challenge) error {
	tag, err := r.pool.Exec(ctx, `UPDATE challenges
		SET title = $2, description = $3, objectives = $4, total_points = $5, updated_at = $6
		WHERE id = $1`,
		c.ID, c.Title, c.Description, c.Objectives, c.TotalPoints, c.UpdatedAt,
	)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) GetChallenge(ctx context.Context, challengeID string) (Challenge, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Challenge{}, ErrNotFound
	}
	return c, err
}

func (r *postgresRepository) ListChallenges(ctx context.Context) ([]Challenge, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Challenge, 0)
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresRepository) AddMembership(ctx context.Context, m Membership) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO memberships (challenge_id, user_id, start_date, end_date, joined_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ChallengeID, m.UserID, m.StartDate, m.EndDate, m.JoinedAt,
	)
	return translatePgError(err)
}

func (r *postgresRepository) RemoveMembership(ctx context.Context, challengeID, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotParticipant
	}
	return nil
}

func (r *postgresRepository) ListMemberships(ctx context.Context, challengeID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, start_date, end_date, joined_at
		FROM memberships WHERE challenge_id = $1 ORDER BY joined_at, user_id`, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Membership, 0)
	for rows.Next() {
		m := Membership{ChallengeID: challengeID}
		if err := rows.Scan(&m.UserID, &m.StartDate, &m.EndDate, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertEntry takes the same advisory lock as DeleteObjectiveEntries, so an insert never
// interleaves with a reset of the same objective.
func (r *postgresRepository) InsertEntry(ctx context.Context, e scoring.Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockObjective(ctx, tx, e.UserID, e.ChallengeID, e.ObjectiveID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO entries (id, user_id, challenge_id, objective_id, value, created_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.UserID, e.ChallengeID, e.ObjectiveID, e.Value, e.CreatedAt, e.Notes,
		)
		return translatePgError(err)
	})
}

const entryColumns = `id, user_id, challenge_id, objective_id, value, created_at, notes`

func (r *postgresRepository) ListEntries(ctx context.Context, userID, challengeID string) ([]scoring.Entry, error) {
	return r.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE user_id = $1 AND challenge_id = $2
		ORDER BY created_at, id`, userID, challengeID)
}

func (r *postgresRepository) ListEntriesInRange(ctx context.Context, userID, challengeID string, startInclusive, endExclusive time.Time) ([]scoring.Entry, error) {
	return r.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE user_id = $1 AND challenge_id = $2 AND created_at >= $3 AND created_at < $4
		ORDER BY created_at, id`, userID, challengeID, startInclusive, endExclusive)
}

func (r *postgresRepository) queryEntries(ctx context.Context, sql string, args ...any) ([]scoring.Entry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]scoring.Entry, 0)
	for rows.Next() {
		var e scoring.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ChallengeID, &e.ObjectiveID, &e.Value, &e.CreatedAt, &e.Notes); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresRepository) DeleteObjectiveEntries(ctx context.Context, userID, challengeID, objectiveID string) (int, error) {
	deleted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockObjective(ctx, tx, userID, challengeID, objectiveID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM entries
			WHERE user_id = $1 AND challenge_id = $2 AND objective_id = $3`,
			userID, challengeID, objectiveID,
		)
		if err != nil {
			return err
		}
		deleted = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reset objective %s: %w", objectiveID, err)
	}
	return deleted, nil
}

func (r *postgresRepository) ListAnnouncedLines(ctx context.Context, userID, challengeID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT line_key FROM bingo_lines WHERE user_id = $1 AND challenge_id = $2`, userID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out[key] = true
	}
	return out, rows.Err()
}

func (r *postgresRepository) AddAnnouncedLine(ctx context.Context, userID, challengeID, lineKey string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO bingo_lines (user_id, challenge_id, line_key, announced_at)
		VALUES ($1, $2, $3, $4)`, userID, challengeID, lineKey, at)
	return translatePgError(err)
}

func lockObjective(ctx context.Context, tx pgx.Tx, userID, challengeID, objectiveID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"/"+challengeID+"/"+objectiveID)
	return err
}

func scanChallenge(row pgx.Row) (Challenge, error) {
	var (
		c   Challenge
		typ string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &typ, &c.Objectives, &c.StartDate, &c.EndDate,
		&c.CappedPoints, &c.IsRepeating, &c.TotalPoints, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Challenge{}, err
	}
	c.Type = scoring.StoredChallengeType(typ)
	return c, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}
