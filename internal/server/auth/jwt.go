package auth

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// JWTCodec issues HS256 JWTs.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
}

func NewJWTCodec(secret []byte) *JWTCodec {
	return &JWTCodec{secret: secret, now: time.Now}
}

func (c *JWTCodec) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	})

	return token.SignedString(c.secret)
}

func (c *JWTCodec) Verify(tokenString string) (Claims, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, common.ErrInvalidToken
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return Claims{}, common.ErrInvalidToken
	}

	return Claims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
