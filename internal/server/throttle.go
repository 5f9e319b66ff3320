package server

import (
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
)

// sweepInterval is how often idle buckets are pruned.
const sweepInterval = time.Minute

// throttle is a per-client token bucket bounding how often replays may be
// started. Tokens refill continuously at rate per minute up to burst.
type throttle struct {
	clock     clock.Clock
	rate      float64 // tokens per second
	capacity  float64
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// newThrottle returns nil when perMinute is not positive; a nil throttle
// allows everything.
func newThrottle(perMinute, burst int, c clock.Clock) *throttle {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &throttle{
		clock:     c,
		rate:      float64(perMinute) / 60,
		capacity:  float64(burst),
		buckets:   make(map[string]*bucket),
		lastSweep: c.Now(),
	}
}

// allow takes a token for key. When none is left it reports how long until
// the next one arrives.
func (t *throttle) allow(key string) (bool, time.Duration) {
	if t == nil {
		return true, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if now.Sub(t.lastSweep) >= sweepInterval {
		t.sweep(now)
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{tokens: t.capacity, lastFill: now}
		t.buckets[key] = b
	}

	b.tokens = min(t.capacity, b.tokens+now.Sub(b.lastFill).Seconds()*t.rate)
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	needed := 1 - b.tokens
	return false, time.Duration(needed / t.rate * float64(time.Second))
}

// sweep drops buckets that have refilled completely; a new bucket starts
// full, so forgetting them changes nothing. Caller holds t.mu.
func (t *throttle) sweep(now time.Time) {
	for key, b := range t.buckets {
		if b.tokens+now.Sub(b.lastFill).Seconds()*t.rate >= t.capacity {
			delete(t.buckets, key)
		}
	}
	t.lastSweep = now
}
