package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterRetention keeps a day bucket around long enough to cover every
// timezone's view of "today" plus slack for dashboards.
const counterRetention = 48 * time.Hour

// RedisStore keeps daily counters in Redis. INCRBY gives the atomic
// increment the package contract requires, with no row locks.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Count(ctx context.Context, key Key) (int64, error) {
	n, err := s.client.Get(ctx, redisKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Incr(ctx context.Context, key Key, delta int64) (int64, error) {
	k := redisKey(key)
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, k, delta)
	pipe.Expire(ctx, k, counterRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func redisKey(key Key) string {
	return fmt.Sprintf("usage:%s:%s:%s:%s", key.UserID, key.Day, key.Type, key.CharacterID)
}
