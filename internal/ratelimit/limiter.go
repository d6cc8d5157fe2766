package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Limiter evaluates rule sets against a Store.
type Limiter struct {
	store   Store
	backend string
}

func NewLimiter(store Store, backend string) *Limiter {
	return &Limiter{store: store, backend: backend}
}

// New picks the Redis store when redisURL is set and answers a ping, and the
// memory store otherwise.
func New(ctx context.Context, redisURL string) *Limiter {
	if redisURL == "" {
		logger.Warn("No REDIS_URL found - using in-memory storage for rate limiting")
		return NewLimiter(NewMemoryStore(), BackendMemory)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).
			Warn("Failed to parse REDIS_URL, falling back to in-memory rate limiting")
		return NewLimiter(NewMemoryStore(), BackendMemory)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.WithFields(logrus.Fields{"error": err.Error()}).
			Warn("Failed to connect to Redis, falling back to in-memory rate limiting")
		return NewLimiter(NewMemoryStore(), BackendMemory)
	}

	logger.Info("Rate limiter configured with Redis storage")
	return NewLimiter(NewRedisStore(client), BackendRedis)
}

// Allow records a hit for key under every rule, stopping at the first rule
// that is exceeded. Store errors fail open.
func (l *Limiter) Allow(ctx context.Context, key string, rules []Rule) (bool, *Rule) {
	for i := range rules {
		ok, err := l.store.Hit(ctx, key, rules[i])
		if err != nil {
			logger.WithFields(logrus.Fields{
				"key":   key,
				"rule":  rules[i].String(),
				"error": err.Error(),
			}).Error("Rate limit store failed, allowing request")
			continue
		}
		if !ok {
			return false, &rules[i]
		}
	}
	return true, nil
}

func (l *Limiter) Backend() string {
	return l.backend
}

func (l *Limiter) Close() error {
	return l.store.Close()
}
