// Package passwordresets persists single-use password reset tokens.
package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.PasswordReset) error
	// Consume stamps used_at on an unused, unexpired token and returns it.
	// Anything else yields common.ErrorNotFound.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error)
}
