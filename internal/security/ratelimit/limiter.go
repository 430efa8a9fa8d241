package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
)

// Limiter decides whether a caller identified by key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Memory is a per-process sliding window limiter
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	now     func() time.Time
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

// NewMemory creates a limiter allowing maxRequests per window per key
func NewMemory(maxRequests int, window time.Duration) *Memory {
	l := &Memory{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go l.cleanupOldBuckets()
	return l
}

func (l *Memory) Allow(_ context.Context, key string) bool {
	if key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.window)
	reqs := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	b.requests = reqs
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		metrics.ObserveRateLimited("memory")
		return false
	}

	b.requests = append(b.requests, now)
	return true
}

func (l *Memory) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			staleThreshold := l.now().Add(-3 * l.window)
			for key, b := range l.buckets {
				if b.lastSeen.Before(staleThreshold) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the background bucket cleanup
func (l *Memory) Stop() {
	l.once.Do(func() {
		l.cleanup.Stop()
		close(l.done)
	})
}

// Counter increments a key that expires after window
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Redis is a fixed window limiter shared by every API replica. When Redis
// cannot be reached it answers from a local Memory limiter instead.
type Redis struct {
	counter  Counter
	maxReqs  int
	window   time.Duration
	fallback *Memory
	logger   *slog.Logger
	now      func() time.Time
}

// NewRedis creates a shared limiter over counter
func NewRedis(counter Counter, maxRequests int, window time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		counter:  counter,
		maxReqs:  maxRequests,
		window:   window,
		fallback: NewMemory(maxRequests, window),
		logger:   logger,
		now:      time.Now,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) bool {
	if key == "" {
		return true
	}
	slot := l.now().UnixNano() / int64(l.window)
	n, err := l.counter.IncrWindow(ctx, "ratelimit:"+key+":"+strconv.FormatInt(slot, 10), l.window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, using local limiter", slog.String("error", err.Error()))
		return l.fallback.Allow(ctx, key)
	}
	if n > int64(l.maxReqs) {
		metrics.ObserveRateLimited("redis")
		return false
	}
	return true
}

// Stop releases the fallback limiter
func (l *Redis) Stop() {
	l.fallback.Stop()
}
