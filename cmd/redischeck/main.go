// Command redischeck verifies that REDIS_URL points at a usable Redis for
// the rate limiter.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const testKey = "modelswap:redischeck"

var errNoURL = errors.New("no REDIS_URL environment variable found")

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, os.Getenv("REDIS_URL")); err != nil {
		fmt.Fprintf(os.Stderr, "Redis check failed: %v\n", err)
		fmt.Println("Rate limiting will fall back to in-memory storage")
		os.Exit(1)
	}
	fmt.Println("Redis is ready for rate limiting")
}

func run(ctx context.Context, url string) error {
	if url == "" {
		return errNoURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	return check(ctx, client)
}

// check pings Redis and round-trips a test key.
func check(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Println("Redis connection successful")

	if err := client.Set(ctx, testKey, "test_value", time.Minute).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	value, err := client.Get(ctx, testKey).Result()
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if err := client.Del(ctx, testKey).Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if value != "test_value" {
		return fmt.Errorf("read back %q", value)
	}
	fmt.Println("Redis read/write operations successful")
	return nil
}
