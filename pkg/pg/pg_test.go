package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/storyloom/entitlement/pkg/pg"
)

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsNotFound(pgx.ErrNoRows))
	assert.True(t, pg.IsNotFound(fmt.Errorf("query user: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFound(errors.New("connection reset")))
	assert.False(t, pg.IsNotFound(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, pg.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, pg.IsUniqueViolation(errors.New("not a pg error")))
	assert.False(t, pg.IsUniqueViolation(nil))
}
