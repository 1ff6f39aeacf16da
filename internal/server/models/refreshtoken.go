package models

import "time"

// RefreshToken is one link of a session's rotation chain. TokenHash is the
// SHA-256 digest of the value handed to the client.
type RefreshToken struct {
	ID        string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
