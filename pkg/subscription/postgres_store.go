package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists subscription state on the users table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `
	id, subscription_plan, subscription_status, subscription_ends_at,
	subscription_id, provider, provider_account_id, character_slots,
	timezone, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec    Record
		subID  *string
		prov   *string
		provID *string
	)
	err := row.Scan(&rec.UserID, &rec.Plan, &rec.Status, &rec.EndsAt,
		&subID, &prov, &provID, &rec.CharacterSlots, &rec.Timezone, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if subID != nil {
		rec.SubscriptionID = *subID
	}
	if prov != nil {
		rec.Provider = *prov
	}
	if provID != nil {
		rec.ProviderAccountID = *provID
	}
	return &rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+recordColumns+` FROM users WHERE id = $1`, userID)
	return scanRecord(row)
}

func (s *PostgresStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	if subscriptionID == "" {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT`+recordColumns+` FROM users WHERE subscription_id = $1`, subscriptionID)
	return scanRecord(row)
}

// SetState writes the whole derived state in one statement: last write wins
// at the row level, no field interleaving between concurrent deliveries.
func (s *PostgresStore) SetState(ctx context.Context, userID uuid.UUID, change Change) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			subscription_plan = $2,
			subscription_status = $3,
			subscription_ends_at = $4,
			subscription_id = $5,
			provider = $6,
			character_slots = $7,
			updated_at = $8
		WHERE id = $1`,
		userID, change.Plan, change.Status, change.EndsAt,
		nullable(change.SubscriptionID), nullable(change.Provider),
		change.CharacterSlots, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LinkIdentity(ctx context.Context, userID uuid.UUID, provider, subscriptionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			subscription_id = $2,
			provider = $3,
			updated_at = $4
		WHERE id = $1`,
		userID, nullable(subscriptionID), nullable(provider), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListLapsed(ctx context.Context, now time.Time, cursor uuid.UUID, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+recordColumns+`
		FROM users
		WHERE subscription_status = 'canceled'
		  AND subscription_ends_at IS NOT NULL
		  AND subscription_ends_at <= $1
		  AND id > $2
		ORDER BY id
		LIMIT $3`,
		now.UTC(), cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
