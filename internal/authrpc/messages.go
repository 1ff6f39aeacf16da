package authrpc

import "time"

type Empty struct{}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	Active        bool       `json:"active"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Tokens is a freshly issued access/refresh pair. ExpiresIn is the access
// token lifetime in seconds.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type SessionResponse struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
