package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists pending checkouts in the pending_checkouts table.
// This is the deployment store: it survives restarts and is shared across
// instances, unlike a process-local map.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Begin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_checkouts (user_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET created_at = EXCLUDED.created_at`,
		userID, at.UTC())
	return err
}

func (s *PostgresStore) Latest(ctx context.Context, now time.Time, ttl time.Duration) (*Pending, error) {
	// TTL is enforced in the query; stale rows are invisible even before
	// any cleanup deletes them.
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, created_at
		FROM pending_checkouts
		WHERE created_at > $1
		ORDER BY created_at DESC
		LIMIT 1`,
		now.UTC().Add(-ttl))

	var p Pending
	if err := row.Scan(&p.UserID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingCheckout
		}
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) Consume(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_checkouts WHERE user_id = $1`, userID)
	return err
}
