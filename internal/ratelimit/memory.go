package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleBucketTTL = 25 * time.Hour

// MemoryStore keeps a token bucket per key and rule. A full bucket admits
// Limit hits at once and then refills one hit every Window/Limit, so unlike
// RedisStore's fixed window a client can reach up to 2*Limit in its first
// Window.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cancel  context.CancelFunc
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryStore() *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		cancel:  cancel,
		now:     time.Now,
	}
	go s.janitor(ctx)
	return s
}

func (s *MemoryStore) Hit(_ context.Context, key string, rule Rule) (bool, error) {
	id := rule.String() + "|" + key

	s.mu.Lock()
	b, ok := s.buckets[id]
	if !ok {
		every := rule.Window / time.Duration(rule.Limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), rule.Limit)}
		s.buckets[id] = b
	}
	now := s.now()
	b.lastSeen = now
	s.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

func (s *MemoryStore) Close() error {
	s.cancel()
	return nil
}

// janitor drops buckets idle for longer than the longest supported window.
func (s *MemoryStore) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, b := range s.buckets {
				if s.now().Sub(b.lastSeen) > idleBucketTTL {
					delete(s.buckets, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
