package server

import (
	"sync"
	"time"

	"mt5-gateway/src/cache"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedCallers bounds the limiter cache; callers past it may be
	// turned away by the admission policy and are then limited afresh.
	maxTrackedCallers = 100_000

	// limiterIdleTTL is past the one-minute refill of a bucket, so an
	// evicted limiter was already full.
	limiterIdleTTL = 2 * time.Minute
)

// rateLimiter keeps one token bucket per user. Idle buckets expire. A
// non-positive rate disables limiting.
type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *cache.TTLCache[*rate.Limiter]
}

func newRateLimiter(perMinute int, idleTTL time.Duration) (*rateLimiter, error) {
	rl := &rateLimiter{}
	if perMinute <= 0 {
		return rl, nil
	}

	limiters, err := cache.NewTTLCache[*rate.Limiter](maxTrackedCallers, idleTTL)
	if err != nil {
		return nil, err
	}
	rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
	rl.burst = perMinute
	rl.limiters = limiters
	return rl, nil
}

func (rl *rateLimiter) Allow(key string) bool {
	if rl.burst == 0 {
		return true
	}
	return rl.get(key).Allow()
}

// get returns the caller's limiter and restarts its idle ttl.
func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
	}
	rl.limiters.Set(key, l)
	return l
}

func (rl *rateLimiter) Close() {
	if rl.limiters != nil {
		rl.limiters.Close()
	}
}
