package sessioncache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with lazy expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, sessionID string) (State, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(sessionID)]
	if !ok {
		return State{}, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key(sessionID))
		return State{}, false, nil
	}
	return e.state, true, nil
}

func (c *MemoryCache) Set(_ context.Context, sessionID string, state State, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(sessionID)] = memEntry{state: state, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key(sessionID))
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := c.Get(ctx, sessionID)
	return ok, err
}

func (c *MemoryCache) Ping(context.Context) error { return nil }
