// Package sessions persists login sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores sessions. Absent rows yield common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// GetForUpdate loads the session and locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// Invalidate flips is_valid to false and reports whether this call did it.
	Invalidate(ctx context.Context, id string) (bool, error)
	ListValidIDs(ctx context.Context, userID string) ([]string, error)
}
