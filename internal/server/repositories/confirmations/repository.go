// Package confirmations persists single-use email confirmation tokens.
package confirmations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.EmailConfirmation) error
	// FindOutstanding returns the newest unconfirmed, unexpired confirmation
	// of the user or common.ErrorNotFound.
	FindOutstanding(ctx context.Context, userID string, now time.Time) (*models.EmailConfirmation, error)
	// Confirm stamps confirmed_at on an outstanding token and returns it. An
	// unknown, expired or already confirmed token yields common.ErrorNotFound.
	Confirm(ctx context.Context, tokenHash string, now time.Time) (*models.EmailConfirmation, error)
}
