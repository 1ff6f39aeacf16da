package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const oneTimeTokenBytes = 32

// Mailer delivers the account emails carrying one-time tokens.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

type AuthConfig struct {
	ConfirmationTTL  time.Duration
	PasswordResetTTL time.Duration
}

// AuthResult is returned by the flows that open a session.
type AuthResult struct {
	User   *models.User
	Tokens *TokenPair
}

// AuthService composes credentials, sessions, tokens and mail into the
// account flows exposed to clients.
type AuthService struct {
	m        repomanager.RepositoryManager
	creds    *CredentialService
	sessions *SessionService
	codec    auth.Codec
	mailer   Mailer
	cfg      AuthConfig
	log      logging.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewAuthService(m repomanager.RepositoryManager, creds *CredentialService, sessions *SessionService,
	codec auth.Codec, mailer Mailer, cfg AuthConfig, log logging.Logger, rec metrics.Recorder) *AuthService {
	return &AuthService{
		m:        m,
		creds:    creds,
		sessions: sessions,
		codec:    codec,
		mailer:   mailer,
		cfg:      cfg,
		log:      log.With("module", "auth"),
		metrics:  rec,
		now:      time.Now,
	}
}

func (s *AuthService) observe(flow string, err *error) {
	s.metrics.RecordFlow(flow, *err)
}

// Register creates the account, logs it in and sends the address
// confirmation email.
func (s *AuthService) Register(ctx context.Context, email, password string, client ClientInfo) (res *AuthResult, err error) {
	defer s.observe("register", &err)

	user, err := s.creds.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.CreateSession(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	// the account exists either way; a lost email can be resent
	if err := s.issueConfirmation(ctx, user); err != nil {
		s.log.Error(ctx, "confirmation not issued", "user_id", user.ID, "error", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (res *AuthResult, err error) {
	defer s.observe("login", &err)

	user, err := s.creds.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.CreateSession(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "session_id", tokens.SessionID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// ValidateAccessToken accepts a token only if its signature verifies and
// the session it names is still valid and unexpired.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (claims auth.Claims, err error) {
	defer s.observe("validate", &err)

	claims, err = s.codec.Verify(token)
	if err != nil {
		return auth.Claims{}, common.Wrap("auth.ValidateAccessToken", common.ErrInvalidToken, err)
	}
	if err := s.sessions.CheckSession(ctx, claims); err != nil {
		return auth.Claims{}, err
	}
	return claims, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer s.observe("refresh", &err)

	if refreshToken == "" {
		return nil, common.E("auth.Refresh", common.ErrorUnauthorized, "invalid refresh token")
	}
	return s.sessions.RotateRefreshToken(ctx, refreshToken)
}

// Logout closes the session the access token belongs to. It never fails
// the caller: an unusable token or a store error only gets logged, and the
// client drops its tokens regardless.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	var err error
	defer s.observe("logout", &err)

	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		s.log.Debug(ctx, "logout with unusable token", "error", err)
		return
	}

	if _, err = s.sessions.InvalidateSession(ctx, claims.SessionID); err != nil {
		s.log.Error(ctx, "logout failed", "session_id", claims.SessionID, "error", err)
		return
	}
	s.log.Info(ctx, "user logged out", "user_id", claims.UserID, "session_id", claims.SessionID)
}

// ChangePassword replaces the password and closes every session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	defer s.observe("change_password", &err)

	if err := s.creds.ChangePassword(ctx, userID, currentPassword, newPassword); err != nil {
		return err
	}
	if _, err := s.sessions.InvalidateAllSessions(ctx, userID, ""); err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// RequestPasswordReset mails a single-use reset link. It reports success
// for unknown addresses so callers cannot discover which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	const op = "auth.RequestPasswordReset"
	defer s.observe("request_password_reset", &err)

	if err := checkInput(op, emailInput{Email: common.NormalizeEmail(email)}); err != nil {
		return err
	}

	user, found, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		s.log.Debug(ctx, "password reset for unknown email")
		return nil
	}

	token, err := common.MakeRandHexString(oneTimeTokenBytes)
	if err != nil {
		return common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	if err := s.m.PasswordResets().Create(ctx, &models.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: common.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.PasswordResetTTL),
	}); err != nil {
		return common.Wrap(op, common.ErrorInternal, err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.log.Error(ctx, "password reset email not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token, stores the new password and closes
// every session of the user. A bad, used or expired token is BadRequest.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	const op = "auth.ResetPassword"
	defer s.observe("reset_password", &err)

	if err := checkInput(op, passwordInput{Password: newPassword}); err != nil {
		return err
	}
	if err := checkInput(op, tokenInput{Token: token}); err != nil {
		return common.E(op, common.ErrorBadRequest, "invalid or expired token")
	}

	hash, err := s.creds.HashPassword(newPassword)
	if err != nil {
		return common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	var userID string
	err = s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		reset, err := repos.PasswordResets().Consume(ctx, common.HashToken(token), now)
		if err != nil {
			return err
		}
		userID = reset.UserID
		return repos.Users().UpdatePassword(ctx, reset.UserID, hash, now)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.E(op, common.ErrorBadRequest, "invalid or expired token")
		}
		return common.Wrap(op, common.ErrorInternal, err)
	}

	if _, err := s.sessions.InvalidateAllSessions(ctx, userID, ""); err != nil {
		return err
	}

	s.log.Info(ctx, "password reset", "user_id", userID)
	return nil
}

// ConfirmEmail consumes a confirmation token and marks the address verified.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (err error) {
	const op = "auth.ConfirmEmail"
	defer s.observe("confirm_email", &err)

	if err := checkInput(op, tokenInput{Token: token}); err != nil {
		return common.E(op, common.ErrorBadRequest, "invalid or expired token")
	}

	now := s.now()
	var userID string
	err = s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		c, err := repos.Confirmations().Confirm(ctx, common.HashToken(token), now)
		if err != nil {
			return err
		}
		userID = c.UserID
		return repos.Users().SetEmailVerified(ctx, c.UserID, now)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.E(op, common.ErrorBadRequest, "invalid or expired token")
		}
		return common.Wrap(op, common.ErrorInternal, err)
	}

	s.log.Info(ctx, "email confirmed", "user_id", userID)
	return nil
}

// ResendConfirmation mails a fresh confirmation link. Unknown addresses
// succeed silently; a verified address is BadRequest and an outstanding
// link is TooManyRequests.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) (err error) {
	const op = "auth.ResendConfirmation"
	defer s.observe("resend_confirmation", &err)

	if err := checkInput(op, emailInput{Email: common.NormalizeEmail(email)}); err != nil {
		return err
	}

	user, found, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if user.EmailVerified {
		return common.E(op, common.ErrorBadRequest, "email already verified")
	}

	return s.issueConfirmation(ctx, user)
}

// issueConfirmation stores a new confirmation token unless one is still
// outstanding, then mails it. Mail failures are logged, not returned.
func (s *AuthService) issueConfirmation(ctx context.Context, user *models.User) error {
	const op = "auth.issueConfirmation"

	token, err := common.MakeRandHexString(oneTimeTokenBytes)
	if err != nil {
		return common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	err = s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		// serializes concurrent resends for the same user
		if _, err := repos.Users().GetForUpdate(ctx, user.ID); err != nil {
			return err
		}
		_, err := repos.Confirmations().FindOutstanding(ctx, user.ID, now)
		switch {
		case err == nil:
			return common.E(op, common.ErrorTooManyRequests,
				"confirmation email recently sent, please wait before requesting another")
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
		return repos.Confirmations().Create(ctx, &models.EmailConfirmation{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			TokenHash: common.HashToken(token),
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.ConfirmationTTL),
		})
	})
	if err != nil {
		if common.KindOf(err) == common.ErrorTooManyRequests {
			return err
		}
		return common.Wrap(op, common.ErrorInternal, err)
	}

	if err := s.mailer.SendConfirmation(ctx, user.Email, token); err != nil {
		s.log.Error(ctx, "confirmation email not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// RequireVerifiedEmail fails Forbidden unless the user confirmed the address.
func (s *AuthService) RequireVerifiedEmail(ctx context.Context, userID string) error {
	ok, err := s.creds.IsEmailVerified(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.E("auth.RequireVerifiedEmail", common.ErrorForbidden, "email not verified")
	}
	return nil
}

// RequireActiveAccount fails Forbidden for deactivated accounts.
func (s *AuthService) RequireActiveAccount(ctx context.Context, userID string) error {
	ok, err := s.creds.IsActive(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.E("auth.RequireActiveAccount", common.ErrorForbidden, "account is deactivated")
	}
	return nil
}

// DeactivateUser disables the account and closes all its sessions.
func (s *AuthService) DeactivateUser(ctx context.Context, userID string) (err error) {
	defer s.observe("deactivate", &err)

	if err := s.creds.SetActive(ctx, userID, false); err != nil {
		return err
	}
	if _, err := s.sessions.InvalidateAllSessions(ctx, userID, ""); err != nil {
		return err
	}

	s.log.Info(ctx, "user deactivated", "user_id", userID)
	return nil
}

// Me returns the user behind a valid access token.
func (s *AuthService) Me(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.creds.GetUser(ctx, claims.UserID)
}

// GetUser loads an account for a caller whose token was already validated.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.creds.GetUser(ctx, userID)
}
