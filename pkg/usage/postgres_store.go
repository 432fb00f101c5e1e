package usage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists counters in the daily_usage table. The upsert
// increment is a single statement, so the database serializes concurrent
// increments on the same counter row. Shared-mode counters store uuid.Nil
// as character_id to keep the composite primary key non-null.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Count(ctx context.Context, key Key) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count
		FROM daily_usage
		WHERE user_id = $1 AND day = $2 AND usage_type = $3 AND character_id = $4`,
		key.UserID, string(key.Day), string(key.Type), key.CharacterID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) Incr(ctx context.Context, key Key, delta int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO daily_usage (user_id, day, usage_type, character_id, count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day, usage_type, character_id)
		DO UPDATE SET count = daily_usage.count + EXCLUDED.count
		RETURNING count`,
		key.UserID, string(key.Day), string(key.Type), key.CharacterID, delta).Scan(&count)
	return count, err
}
