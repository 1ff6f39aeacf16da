package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker in front of Redis.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts; 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// RedisCache stores State as JSON under "session:<id>".
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[any]
}

func NewRedisCache(client *redis.Client, cfg BreakerConfig, log logging.Logger) *RedisCache {
	settings := gobreaker.Settings{
		Name:        "session-cache",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// a miss is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &RedisCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, sessionID string) (State, bool, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.client.Get(ctx, key(sessionID)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session cache get: %w", err)
	}

	var st State
	if err := json.Unmarshal(res.([]byte), &st); err != nil {
		return State{}, false, fmt.Errorf("session cache decode: %w", err)
	}
	return st, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sessionID string, state State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session cache encode: %w", err)
	}
	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, key(sessionID), data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("session cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, sessionID string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.client.Del(ctx, key(sessionID)).Err()
	})
	if err != nil {
		return fmt.Errorf("session cache delete: %w", err)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, sessionID string) (bool, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.client.Exists(ctx, key(sessionID)).Result()
	})
	if err != nil {
		return false, fmt.Errorf("session cache exists: %w", err)
	}
	return res.(int64) > 0, nil
}

// Ping checks Redis directly, bypassing the breaker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// State exposes the breaker state for health reporting.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}
