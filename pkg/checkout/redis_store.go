package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "checkout:pending:"

// RedisStore keeps pending checkouts in Redis. The key TTL matches the
// bridge TTL, so expiry is handled by Redis itself; Latest still re-checks
// the stored timestamp so a custom TTL shorter than the key TTL behaves
// the same as the other stores.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed Store. A non-positive keyTTL falls
// back to DefaultTTL.
func NewRedisStore(client *redis.Client, keyTTL time.Duration) *RedisStore {
	if keyTTL <= 0 {
		keyTTL = DefaultTTL
	}
	return &RedisStore{client: client, ttl: keyTTL}
}

func (s *RedisStore) Begin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	key := redisKeyPrefix + userID.String()
	return s.client.Set(ctx, key, at.UTC().UnixNano(), s.ttl).Err()
}

func (s *RedisStore) Latest(ctx context.Context, now time.Time, ttl time.Duration) (*Pending, error) {
	var (
		cursor uint64
		best   *Pending
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("checkout: scan pending keys: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between SCAN and GET
				}
				return nil, err
			}
			nanos, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			userID, err := uuid.Parse(key[len(redisKeyPrefix):])
			if err != nil {
				continue
			}
			p := Pending{UserID: userID, CreatedAt: time.Unix(0, nanos).UTC()}
			if p.Expired(now, ttl) {
				continue
			}
			if best == nil || p.CreatedAt.After(best.CreatedAt) {
				best = &p
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if best == nil {
		return nil, ErrNoPendingCheckout
	}
	return best, nil
}

func (s *RedisStore) Consume(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, redisKeyPrefix+userID.String()).Err()
}
