package services

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newCredentials(t *testing.T) *CredentialService {
	t.Helper()
	return NewCredentialService(memory.NewRepositoryManager(), bcrypt.MinCost)
}

func TestCredentials_Register(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	u, err := s.Register(ctx, "  Alice@Example.COM ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.Active)
	assert.False(t, u.EmailVerified)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, []byte("secret1"), u.PasswordHash)

	_, err = s.Register(ctx, "alice@example.com", "another")
	requireKind(t, err, common.ErrorConflict)
}

func TestCredentials_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	tests := []struct {
		name, email, password, msg string
	}{
		{"bad email", "not-an-email", "secret1", "email must be a valid email address"},
		{"short password", "a@x.com", "12345", "password must be at least 6 characters"},
		{"missing email", "", "secret1", "email is required"},
		{"password over 72 bytes", "a@x.com", strings.Repeat("é", 40), "password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.email, tt.password)
			requireKind(t, err, common.ErrorBadRequest)
			assert.Equal(t, tt.msg, common.Message(err))
		})
	}
}

func TestCredentials_Authenticate(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	u, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, "A@X.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)

	_, errWrong := s.Authenticate(ctx, "a@x.com", "wrongpass")
	requireKind(t, errWrong, common.ErrorUnauthorized)

	_, errUnknown := s.Authenticate(ctx, "nobody@x.com", "secret1")
	requireKind(t, errUnknown, common.ErrorUnauthorized)
	assert.Equal(t, common.Message(errWrong), common.Message(errUnknown), "unknown email and wrong password look the same")

	require.NoError(t, s.SetActive(ctx, u.ID, false))
	_, err = s.Authenticate(ctx, "a@x.com", "secret1")
	requireKind(t, err, common.ErrorForbidden)
	assert.Equal(t, "account is deactivated", common.Message(err))
}

func TestCredentials_Flags(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	u, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	verified, err := s.IsEmailVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, s.MarkEmailVerified(ctx, u.ID))
	verified, err = s.IsEmailVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, verified)

	active, err := s.IsActive(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = s.IsActive(ctx, "missing")
	requireKind(t, err, common.ErrorNotFound)
	_, err = s.IsEmailVerified(ctx, "missing")
	requireKind(t, err, common.ErrorNotFound)
	requireKind(t, s.SetActive(ctx, "missing", true), common.ErrorNotFound)
}

func TestCredentials_ChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	u, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	requireKind(t, s.ChangePassword(ctx, u.ID, "wrong", "newsecret"), common.ErrorUnauthorized)
	requireKind(t, s.ChangePassword(ctx, "missing", "secret1", "newsecret"), common.ErrorNotFound)
	requireKind(t, s.ChangePassword(ctx, u.ID, "secret1", "123"), common.ErrorBadRequest)
	requireKind(t, s.ChangePassword(ctx, u.ID, "secret1", strings.Repeat("é", 37)), common.ErrorBadRequest)

	require.NoError(t, s.ChangePassword(ctx, u.ID, "secret1", "newsecret"))

	_, err = s.Authenticate(ctx, "a@x.com", "secret1")
	requireKind(t, err, common.ErrorUnauthorized)
	_, err = s.Authenticate(ctx, "a@x.com", "newsecret")
	require.NoError(t, err)
}

func TestCredentials_FindByEmail(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	_, found, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	u, found, err := s.FindByEmail(ctx, " A@x.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestCredentials_MultibytePasswordAtByteLimit(t *testing.T) {
	ctx := context.Background()
	s := newCredentials(t)

	password := strings.Repeat("é", 36)
	_, err := s.Register(ctx, "a@x.com", password)
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "a@x.com", password)
	require.NoError(t, err)
}
