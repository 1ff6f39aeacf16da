// Package sessioncache keeps a short-lived copy of session validity so access
// token checks can skip the database. It is an accelerator only: callers
// treat every error as a miss and fall back to the session store.
package sessioncache

import (
	"context"
	"time"
)

// State is what the cache knows about one session.
type State struct {
	UserID  string `json:"userId"`
	IsValid bool   `json:"isValid"`
}

type Cache interface {
	// Get reports ok=false on a miss.
	Get(ctx context.Context, sessionID string) (state State, ok bool, err error)
	Set(ctx context.Context, sessionID string, state State, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

const keyPrefix = "session:"

func key(sessionID string) string {
	return keyPrefix + sessionID
}
