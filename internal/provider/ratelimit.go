package provider

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a simple token-bucket rate limiter. Strict provider APIs
// run it at 1 token/sec with a burst of 1, which serializes calls the same
// way a shared per-key gate would.
type TokenBucket struct {
	mu     sync.Mutex
	tokens float64
	cap    float64
	rate   float64 // tokens per second
	last   time.Time
	now    func() time.Time // test hook
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewTokenBucket creates a bucket refilling at rps with the given burst
// capacity. The bucket starts full.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	b := &TokenBucket{
		tokens: float64(burst),
		cap:    float64(burst),
		rate:   rps,
		now:    time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	b.last = b.now()
	return b
}

// Wait blocks until one token is available or the context expires.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		need := (1 - b.tokens) / b.rate
		b.mu.Unlock()

		if err := b.sleep(ctx, time.Duration(need*float64(time.Second))); err != nil {
			return err
		}
	}
}

// refill credits tokens for elapsed time. Caller holds the lock.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.cap {
		b.tokens = b.cap
	}
}
