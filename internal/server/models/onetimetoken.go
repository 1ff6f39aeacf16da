package models

import "time"

// EmailConfirmation is a single-use token proving ownership of the address.
type EmailConfirmation struct {
	ID          string
	UserID      string
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
}

// Outstanding reports whether the confirmation is unconfirmed and unexpired.
func (c *EmailConfirmation) Outstanding(now time.Time) bool {
	return c.ConfirmedAt == nil && now.Before(c.ExpiresAt)
}

// PasswordReset is a single-use token authorizing one password overwrite.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Usable reports whether the reset token is unused and unexpired.
func (r *PasswordReset) Usable(now time.Time) bool {
	return r.UsedAt == nil && now.Before(r.ExpiresAt)
}
