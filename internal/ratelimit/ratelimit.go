// Package ratelimit provides a keyed token-bucket rate limiter.
// The login endpoint uses it to throttle credential guessing per username.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// sweepInterval is how often idle entries are checked for eviction.
	sweepInterval = 5 * time.Minute

	// idleTTL is how long a key may go unused before its limiter is
	// dropped. Must exceed the bucket refill time, so a re-created
	// limiter never grants more tokens than the evicted one had.
	idleTTL = 15 * time.Minute
)

// entry pairs a limiter with its last access time (unix nanos).
type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter. Keys are
// caller-supplied (usernames on an unauthenticated endpoint), so idle
// entries are evicted to keep the map bounded.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int

	// Cleanup
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
	}

	go krl.cleanup()

	return krl
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or the context
// is canceled.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	// Fast path: read lock
	krl.mu.RLock()
	e, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if exists {
		e.lastSeen.Store(now)
		return e.limiter
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Double-check after acquiring write lock
	if e, exists = krl.limiters[key]; exists {
		e.lastSeen.Store(now)
		return e.limiter
	}

	e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
	e.lastSeen.Store(now)
	krl.limiters[key] = e
	return e.limiter
}

// cleanup periodically evicts idle entries until Stop is called.
func (krl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			krl.sweep(time.Now())
		case <-krl.done:
			return
		}
	}
}

// sweep drops entries idle for longer than idleTTL.
func (krl *KeyedRateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-idleTTL).UnixNano()

	krl.mu.Lock()
	defer krl.mu.Unlock()

	for key, e := range krl.limiters {
		if e.lastSeen.Load() < cutoff {
			delete(krl.limiters, key)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}
