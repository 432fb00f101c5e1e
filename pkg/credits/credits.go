package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means no credit state exists for the user.
	ErrNotFound = errors.New("credits: user not found")

	// ErrInsufficientCredits is the user-facing denial for a debit larger
	// than the balance. A domain result, not an internal failure.
	ErrInsufficientCredits = errors.New("credits: insufficient balance")

	// ErrStarterKitOwned means the one-time starter kit was already bought.
	ErrStarterKitOwned = errors.New("credits: starter kit already purchased")
)

// Config tunes the ledger. All amounts are deployment configuration.
type Config struct {
	RechargeAmount    int `env:"CREDITS_RECHARGE_AMOUNT" envDefault:"5"`
	RechargeCap       int `env:"CREDITS_RECHARGE_CAP" envDefault:"10"`
	StarterKitCredits int `env:"CREDITS_STARTER_KIT_AMOUNT" envDefault:"50"`
}

// DefaultConfig returns the standard ledger tuning.
func DefaultConfig() Config {
	return Config{RechargeAmount: 5, RechargeCap: 10, StarterKitCredits: 50}
}

// State is one user's credit state.
type State struct {
	UserID        uuid.UUID
	Balance       int
	RechargedAt   *time.Time // nil before the first recharge
	HasStarterKit bool
	Timezone      string // IANA zone, fixed at signup
}

// Store persists credit state.
//
// Debit must be atomic and conditional: it subtracts only when the balance
// covers the amount, so two concurrent debits can never drive the balance
// negative. Recharge is one atomic statement guarded by a compare-and-set
// on the previous recharge instant: it tops the balance up by amount, to
// at most cap, never reducing it, reading the current balance inside the
// same statement so a concurrent Add is never lost. A false return means
// another writer recharged first and the caller should re-read.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*State, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int) (newBalance int, err error)
	Add(ctx context.Context, userID uuid.UUID, amount int) (newBalance int, err error)
	Recharge(ctx context.Context, userID uuid.UUID, prev *time.Time, amount, cap int, at time.Time) (bool, error)
	MarkStarterKit(ctx context.Context, userID uuid.UUID) error

	// List pages all users' credit state in stable user-id order after the
	// cursor, for the batch recharge sweep.
	List(ctx context.Context, cursor uuid.UUID, limit int) ([]State, error)
}
