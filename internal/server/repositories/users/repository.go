// Package users persists user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores users. Lookups of absent rows return common.ErrorNotFound;
// Create on a taken email returns common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetForUpdate loads the user and locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}
