// Package auth signs and verifies the short-lived access tokens handed to
// clients. A token only proves what it claims until it expires; whether the
// session behind it is still valid is checked elsewhere.
package auth

import (
	"fmt"
	"time"
)

// Claims is the identity an access token carries.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Codec mints and checks access tokens. Verify reports every failure
// (bad signature, malformed payload, expiry) as common.ErrInvalidToken.
type Codec interface {
	Sign(claims Claims, ttl time.Duration) (string, error)
	Verify(token string) (Claims, error)
}

const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// NewCodec builds the codec selected by format. secret is the HMAC key for
// JWT; pasetoKeyHex is the Ed25519 secret key for PASETO.
func NewCodec(format, secret, pasetoKeyHex string) (Codec, error) {
	switch format {
	case FormatJWT, "":
		return NewJWTCodec([]byte(secret)), nil
	case FormatPaseto:
		return NewPasetoCodec(pasetoKeyHex)
	default:
		return nil, fmt.Errorf("unknown token format %q", format)
	}
}
