// Package services holds the server-side business logic: credential
// checks, the session lifecycle and the auth flows composed from them.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

// CredentialService owns user records and password hashes.
type CredentialService struct {
	repos repomanager.Repositories
	cost  int
	now   func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewCredentialService(repos repomanager.Repositories, bcryptCost int) *CredentialService {
	return &CredentialService{repos: repos, cost: bcryptCost, now: time.Now}
}

// Register creates an unverified, active user. A taken email is a Conflict.
func (s *CredentialService) Register(ctx context.Context, email, password string) (*models.User, error) {
	const op = "credentials.Register"

	email = common.NormalizeEmail(email)
	if err := checkInput(op, credentialsInput{Email: email, Password: password}); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	user, err := s.repos.Users().Create(ctx, &models.User{
		ID:            ulid.Make().String(),
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: false,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.E(op, common.ErrorConflict, "email already registered")
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	return user, nil
}

// Authenticate checks the password of the account behind email. Unknown
// emails and wrong passwords are indistinguishable Unauthorized errors; a
// deactivated account is Forbidden.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "credentials.Authenticate"

	user, err := s.repos.Users().GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same time as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, common.E(op, common.ErrorUnauthorized, "invalid credentials")
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	if !user.Active {
		return nil, common.E(op, common.ErrorForbidden, "account is deactivated")
	}

	if !s.checkPassword(user.PasswordHash, password) {
		return nil, common.E(op, common.ErrorUnauthorized, "invalid credentials")
	}

	now := s.now()
	if err := s.repos.Users().UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	user.LastLoginAt = &now
	return user, nil
}

func (s *CredentialService) IsEmailVerified(ctx context.Context, userID string) (bool, error) {
	user, err := s.get(ctx, "credentials.IsEmailVerified", userID)
	if err != nil {
		return false, err
	}
	return user.EmailVerified, nil
}

func (s *CredentialService) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := s.get(ctx, "credentials.IsActive", userID)
	if err != nil {
		return false, err
	}
	return user.Active, nil
}

// ChangePassword re-verifies currentPassword before storing newPassword.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "credentials.ChangePassword"

	if err := checkInput(op, passwordInput{Password: newPassword}); err != nil {
		return err
	}

	user, err := s.get(ctx, op, userID)
	if err != nil {
		return err
	}
	if !s.checkPassword(user.PasswordHash, currentPassword) {
		return common.E(op, common.ErrorUnauthorized, "invalid current password")
	}

	return s.SetPassword(ctx, userID, newPassword)
}

// FindByEmail reports found=false for an absent user instead of failing,
// for flows that must not reveal whether an address is registered.
func (s *CredentialService) FindByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	user, err := s.repos.Users().GetByEmail(ctx, common.NormalizeEmail(email))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, common.Wrap("credentials.FindByEmail", common.ErrorInternal, err)
	}
	return user, true, nil
}

func (s *CredentialService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.get(ctx, "credentials.GetUser", userID)
}

// SetPassword overwrites the hash without checking the old password.
func (s *CredentialService) SetPassword(ctx context.Context, userID, newPassword string) error {
	const op = "credentials.SetPassword"

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return common.Wrap(op, common.ErrorInternal, err)
	}
	return s.mapUpdate(op, s.repos.Users().UpdatePassword(ctx, userID, hash, s.now()))
}

func (s *CredentialService) MarkEmailVerified(ctx context.Context, userID string) error {
	const op = "credentials.MarkEmailVerified"
	return s.mapUpdate(op, s.repos.Users().SetEmailVerified(ctx, userID, s.now()))
}

func (s *CredentialService) SetActive(ctx context.Context, userID string, active bool) error {
	const op = "credentials.SetActive"
	return s.mapUpdate(op, s.repos.Users().SetActive(ctx, userID, active, s.now()))
}

// HashPassword hashes with the configured bcrypt cost.
func (s *CredentialService) HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.cost)
}

func (s *CredentialService) checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (s *CredentialService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gophauth-dummy-password"), s.cost)
	})
	return s.dummyHash
}

func (s *CredentialService) get(ctx context.Context, op, userID string) (*models.User, error) {
	user, err := s.repos.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.E(op, common.ErrorNotFound, "user not found")
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	return user, nil
}

func (s *CredentialService) mapUpdate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return common.E(op, common.ErrorNotFound, "user not found")
	default:
		return common.Wrap(op, common.ErrorInternal, err)
	}
}
