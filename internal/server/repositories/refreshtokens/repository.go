// Package refreshtokens persists the rotating refresh-token chain of each
// session. Tokens are addressed by the SHA-256 digest of their value.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// GetByHash reads the token in any state without locking it. Absent
	// tokens yield common.ErrorNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Revoke atomically marks the token revoked if it is currently active at
	// now and returns the row. An absent, revoked or expired token yields
	// common.ErrorNotFound, so of two concurrent callers only one succeeds.
	Revoke(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	RevokeAllForSession(ctx context.Context, sessionID string) (int64, error)
	// CountActive is an audit query: after a session is invalidated it must
	// report zero. Tests and operators use it; no flow depends on it.
	CountActive(ctx context.Context, sessionID string, now time.Time) (int, error)
}
