package character

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists characters in the characters table and the active
// pointer on the users row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Character, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, created_at
		FROM characters
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chars []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

func (s *PostgresStore) ActiveID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var active *uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT active_character_id FROM users WHERE id = $1`, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	if active == nil {
		return uuid.Nil, nil
	}
	return *active, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, userID, characterID uuid.UUID) error {
	var val *uuid.UUID
	if characterID != uuid.Nil {
		val = &characterID
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET active_character_id = $2 WHERE id = $1`, userID, val)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, userID, characterID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM characters WHERE id = $1 AND user_id = $2`, characterID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}
