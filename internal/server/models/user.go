package models

import "time"

// User is an account holder. Email is stored normalized (trimmed, lowercase).
type User struct {
	ID            string
	Email         string
	PasswordHash  []byte
	EmailVerified bool
	Active        bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
