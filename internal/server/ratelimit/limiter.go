// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key fits in the current
// window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Key builds the counter key for a method and a caller address.
func Key(method, peer string) string {
	return "rate-limit:" + method + ":" + peer
}

// RedisLimiter keeps one counter per key that expires with the window.
// A limit of zero disables limiting.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, limit: limit}
}

// Allow counts the request and reads the counter's TTL in one transaction.
// A counter left without an expiry, for instance because a previous EXPIRE
// failed, gets one on the next call, so no key outlives its window for good.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	// -1 means the key exists without an expiry
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return incr.Val() <= int64(l.limit), nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the process-local counterpart of RedisLimiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	limit   int
	now     func() time.Time
}

func NewMemoryLimiter(w time.Duration, limit int) *MemoryLimiter {
	return &MemoryLimiter{windows: map[string]*window{}, window: w, limit: limit, now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}
