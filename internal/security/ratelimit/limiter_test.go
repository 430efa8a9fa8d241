package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySlidingWindow(t *testing.T) {
	l := NewMemory(2, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "u1") || !l.Allow(ctx, "u1") {
		t.Fatal("expected first two requests to pass")
	}
	if l.Allow(ctx, "u1") {
		t.Fatal("expected third request to be limited")
	}
	if !l.Allow(ctx, "u2") {
		t.Fatal("keys must not share buckets")
	}
	if !l.Allow(ctx, "") {
		t.Fatal("empty key is never limited")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow(ctx, "u1") {
		t.Fatal("expected window to slide")
	}
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestRedisFixedWindow(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{}}
	l := NewRedis(counter, 2, time.Minute, nil)
	defer l.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "u1") || !l.Allow(ctx, "u1") {
		t.Fatal("expected first two requests to pass")
	}
	if l.Allow(ctx, "u1") {
		t.Fatal("expected third request to be limited")
	}
	now = now.Add(time.Minute)
	if !l.Allow(ctx, "u1") {
		t.Fatal("expected a fresh window")
	}
}

func TestRedisFallsBackToMemory(t *testing.T) {
	l := NewRedis(&fakeCounter{err: errors.New("connection refused")}, 1, time.Minute, nil)
	defer l.Stop()
	ctx := context.Background()

	if !l.Allow(ctx, "u1") {
		t.Fatal("expected fallback to admit the first request")
	}
	if l.Allow(ctx, "u1") {
		t.Fatal("expected fallback to enforce the limit")
	}
}
