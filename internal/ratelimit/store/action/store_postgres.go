package action

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"whozin/internal/ratelimit/models"
	"whozin/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS action_throttle (
	key            TEXT PRIMARY KEY,
	last_action_at TIMESTAMPTZ NOT NULL
)`

// PostgresActionStore persists the last accepted attempts in PostgreSQL.
// Rows are overwritten, never deleted.
type PostgresActionStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed action store.
func NewPostgres(db *sql.DB) *PostgresActionStore {
	return &PostgresActionStore{db: db}
}

// EnsureSchema creates the action_throttle table when missing.
func (s *PostgresActionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure action_throttle schema: %w", err)
	}
	return nil
}

// CheckAndRecord implements ports.ActionStore.
// The conditional upsert only writes when the stored attempt is at least one
// window old, so concurrent callers get a single winner from the row lock.
func (s *PostgresActionStore) CheckAndRecord(ctx context.Context, key string, window time.Duration, now time.Time) (*models.Decision, error) {
	query := `
		INSERT INTO action_throttle (key, last_action_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			last_action_at = EXCLUDED.last_action_at
		WHERE action_throttle.last_action_at <= $3
		RETURNING last_action_at
	`
	var recorded time.Time
	err := s.db.QueryRowContext(ctx, query, key, now, now.Add(-window)).Scan(&recorded)
	if err == nil {
		return models.Allow(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check and record action: %w: %w", sentinel.ErrUnavailable, err)
	}

	var last time.Time
	err = s.db.QueryRowContext(ctx, `SELECT last_action_at FROM action_throttle WHERE key = $1`, key).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflicting row vanished between the two statements.
		return nil, fmt.Errorf("read last action: %w", sentinel.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("read last action: %w: %w", sentinel.ErrUnavailable, err)
	}
	decision := models.Evaluate(last, true, now, window)
	if decision.Allowed {
		// Another caller won between the upsert and the read.
		return models.Reject(window), nil
	}
	return decision, nil
}
