package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/localday"
)

// Service gates and counts daily creations.
type Service struct {
	store Store
	table Table
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a usage tracker over the given store and limit table.
// Panics on a nil store to fail fast during initialization.
func NewService(store Store, table Table, opts ...Option) *Service {
	if store == nil {
		panic("usage: Store is required")
	}
	s := &Service{
		store: store,
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanCreate checks today's counter against the tier limit. A denial is a
// domain Decision, not an error; the error return is infrastructure only.
func (s *Service) CanCreate(ctx context.Context, userID uuid.UUID, typ Type, timezone string, premium bool, characterID uuid.UUID) (Decision, error) {
	now := s.now()
	key, err := s.key(userID, typ, timezone, premium, characterID, now)
	if err != nil {
		return Decision{}, err
	}

	used, err := s.store.Count(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("usage: read counter: %w", err)
	}

	limit := int64(s.table.limitsFor(premium).For(typ))
	resetsAt, err := localday.NextReset(now, timezone)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed:  used < limit,
		Used:     used,
		Limit:    limit,
		ResetsAt: resetsAt,
	}, nil
}

// Increment records one successful creation. Call only after the content
// was produced and persisted; see the package contract.
func (s *Service) Increment(ctx context.Context, userID uuid.UUID, typ Type, timezone string, premium bool, characterID uuid.UUID) error {
	key, err := s.key(userID, typ, timezone, premium, characterID, s.now())
	if err != nil {
		return err
	}
	if _, err := s.store.Incr(ctx, key, 1); err != nil {
		return fmt.Errorf("usage: increment counter: %w", err)
	}
	return nil
}

// Usage reports today's decision for both types, for dashboard queries.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID, timezone string, premium bool, characterID uuid.UUID) (map[Type]Decision, error) {
	out := make(map[Type]Decision, 2)
	for _, typ := range []Type{TypeChapters, TypeScenes} {
		d, err := s.CanCreate(ctx, userID, typ, timezone, premium, characterID)
		if err != nil {
			return nil, err
		}
		out[typ] = d
	}
	return out, nil
}

// key computes the counter identity. The free tier always shares one
// counter across characters regardless of the deployment mode.
func (s *Service) key(userID uuid.UUID, typ Type, timezone string, premium bool, characterID uuid.UUID, now time.Time) (Key, error) {
	if !typ.Valid() {
		return Key{}, fmt.Errorf("usage: unknown type %q", typ)
	}
	day, err := localday.Bucket(now, timezone)
	if err != nil {
		return Key{}, err
	}

	key := Key{UserID: userID, Day: day, Type: typ}
	if premium && s.table.PerCharacterPremium {
		key.CharacterID = characterID
	}
	return key, nil
}
