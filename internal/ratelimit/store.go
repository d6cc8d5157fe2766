package ratelimit

import "context"

// Store counts hits for a key under a rule and reports whether the hit is
// within the limit.
type Store interface {
	Hit(ctx context.Context, key string, rule Rule) (bool, error)
	Close() error
}
