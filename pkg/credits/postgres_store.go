package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists credit state on the users table. Debit and
// Recharge are single conditional statements, so concurrency control comes
// from the database's row-level atomicity rather than application locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*State, error) {
	var state State
	err := s.pool.QueryRow(ctx, `
		SELECT id, credits, credits_recharged_at, has_starter_kit, timezone
		FROM users WHERE id = $1`, userID).
		Scan(&state.UserID, &state.Balance, &state.RechargedAt, &state.HasStarterKit, &state.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

func (s *PostgresStore) Debit(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET credits = credits - $2
		WHERE id = $1 AND credits >= $2
		RETURNING credits`, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Condition failed: distinguish a missing user from a short balance.
	state, gerr := s.Get(ctx, userID)
	if gerr != nil {
		return 0, gerr
	}
	return state.Balance, ErrInsufficientCredits
}

func (s *PostgresStore) Add(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET credits = credits + $2
		WHERE id = $1
		RETURNING credits`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *PostgresStore) Recharge(ctx context.Context, userID uuid.UUID, prev *time.Time, amount, cap int, at time.Time) (bool, error) {
	// Compare-and-set on the previous recharge instant keeps concurrent
	// lazy and batch triggers idempotent per day. The top-up reads credits
	// inside the statement, so a grant committed after the caller's read
	// still counts.
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET credits = LEAST(credits + $2, GREATEST(credits, $3)),
		    credits_recharged_at = $4
		WHERE id = $1 AND credits_recharged_at IS NOT DISTINCT FROM $5`,
		userID, amount, cap, at.UTC(), prev)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkStarterKit(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET has_starter_kit = TRUE WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, cursor uuid.UUID, limit int) ([]State, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, credits, credits_recharged_at, has_starter_kit, timezone
		FROM users
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var state State
		if err := rows.Scan(&state.UserID, &state.Balance, &state.RechargedAt, &state.HasStarterKit, &state.Timezone); err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
