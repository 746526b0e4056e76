package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket allows up to capacity page starts per period, refilling one
// token every period/capacity. It is safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	refillRate time.Duration
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a bucket allowing perPeriod starts every period.
// A perPeriod of zero or less returns nil, meaning no limit.
func NewTokenBucket(perPeriod int, period time.Duration) *TokenBucket {
	if perPeriod <= 0 || period <= 0 {
		return nil
	}
	return &TokenBucket{
		tokens:     perPeriod,
		capacity:   perPeriod,
		refillRate: period / time.Duration(perPeriod),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// PerMinute is shorthand for NewTokenBucket(n, time.Minute)
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

// Wait blocks until a token is available or ctx is done
func (t *TokenBucket) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		t.refill()
		if t.tokens > 0 {
			t.tokens--
			t.mu.Unlock()
			return nil
		}
		wait := t.refillRate - t.now().Sub(t.lastRefill)
		t.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the current number of tokens
func (t *TokenBucket) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refill()
	return t.tokens
}

func (t *TokenBucket) refill() {
	elapsed := t.now().Sub(t.lastRefill)
	add := int(elapsed / t.refillRate)
	if add <= 0 {
		return
	}
	t.tokens += add
	if t.tokens > t.capacity {
		t.tokens = t.capacity
	}
	t.lastRefill = t.lastRefill.Add(time.Duration(add) * t.refillRate)
}
