package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "modelswap:ratelimit:"

// RedisStore implements fixed windows with elastic expiry: every hit
// increments the counter and pushes its expiry one window forward.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, rule Rule) (bool, error) {
	k := keyPrefix + rule.String() + ":" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis hit %s: %w", k, err)
	}
	return incr.Val() <= int64(rule.Limit), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
