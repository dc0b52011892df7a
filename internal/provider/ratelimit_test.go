package provider

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketStartsFull(t *testing.T) {
	b := NewTokenBucket(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("slept %v with tokens available", d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}

func TestTokenBucketBlocksUntilRefill(t *testing.T) {
	b := NewTokenBucket(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.last = now

	var slept time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if slept < 900*time.Millisecond || slept > 1100*time.Millisecond {
		t.Fatalf("slept %v waiting for 1 rps refill, want ~1s", slept)
	}
}

func TestTokenBucketHonorsContext(t *testing.T) {
	b := NewTokenBucket(0.001, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.last = now
	b.tokens = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

func TestTokenBucketCapsAtBurst(t *testing.T) {
	b := NewTokenBucket(10, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.last = now

	// A long idle period must not accumulate more than the burst.
	now = now.Add(time.Hour)
	b.mu.Lock()
	b.refill()
	tokens := b.tokens
	b.mu.Unlock()
	if tokens != 2 {
		t.Fatalf("tokens = %v after idle, want capped at 2", tokens)
	}
}
