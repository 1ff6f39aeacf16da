package auth

import (
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// PasetoCodec issues PASETO v4.public tokens signed with an Ed25519 key.
type PasetoCodec struct {
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
	now    func() time.Time
}

func NewPasetoCodec(secretKeyHex string) (*PasetoCodec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("paseto secret key: %w", err)
	}
	return &PasetoCodec{secret: secret, public: secret.Public(), now: time.Now}, nil
}

// NewPasetoSecretKeyHex generates a fresh key suitable for NewPasetoCodec.
func NewPasetoSecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// PublicKeyHex exposes the verification key for other services.
func (c *PasetoCodec) PublicKeyHex() string {
	return c.public.ExportHex()
}

func (c *PasetoCodec) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := c.now()

	tok := paseto.NewToken()
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))
	if err := tok.Set("uid", claims.UserID); err != nil {
		return "", err
	}
	if err := tok.Set("sid", claims.SessionID); err != nil {
		return "", err
	}

	return tok.V4Sign(c.secret, nil), nil
}

func (c *PasetoCodec) Verify(token string) (Claims, error) {
	// fresh parser per call so rules do not accumulate
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.ValidAt(c.now()))

	parsed, err := p.ParseV4Public(c.public, token, nil)
	if err != nil {
		return Claims{}, common.ErrInvalidToken
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, common.ErrInvalidToken
	}
	uid, err := parsed.GetString("uid")
	if err != nil || uid == "" {
		return Claims{}, common.ErrInvalidToken
	}
	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return Claims{}, common.ErrInvalidToken
	}

	return Claims{UserID: uid, SessionID: sid, ExpiresAt: exp}, nil
}
