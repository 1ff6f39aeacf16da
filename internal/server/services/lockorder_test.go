package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/sessioncache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectTokenQ    = `(?s)^SELECT\s+id,\s*session_id,.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`
	lockSessionQ    = `(?s)FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`
	revokeTokenQ    = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+token_hash`
	insertTokenQ    = `(?s)^INSERT\s+INTO\s+refresh_tokens`
	touchSessionQ   = `(?s)^UPDATE\s+sessions\s+SET\s+last_activity_at`
	revokeAllQ      = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+session_id`
	invalidateSessQ = `(?s)^UPDATE\s+sessions\s+SET\s+is_valid\s*=\s*FALSE`
)

var (
	pgNow       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessionCols = []string{"id", "user_id", "expires_at", "last_activity_at", "user_agent", "ip_address", "is_valid", "created_at"}
	tokenCols   = []string{"id", "session_id", "token_hash", "expires_at", "revoked", "created_at"}
)

func newPostgresSessions(t *testing.T) (*SessionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSessionService(repomanager.NewPostgresRepositoryManager(db), auth.NewJWTCodec([]byte("test-secret")),
		sessioncache.NewMemoryCache(), SessionConfig{
			AccessTokenTTL: 15 * time.Minute,
			SessionTTL:     7 * 24 * time.Hour,
			CacheTTL:       24 * time.Hour,
		}, logging.Nop(), metrics.Nop())
	s.now = func() time.Time { return pgNow }
	return s, mock
}

func sessionRow(valid bool) *sqlmock.Rows {
	return sqlmock.NewRows(sessionCols).AddRow("s-1", "u-1", pgNow.Add(time.Hour), pgNow, "", "", valid, pgNow)
}

func TestRotateRefreshToken_LocksSessionBeforeRevoke(t *testing.T) {
	s, mock := newPostgresSessions(t)
	hash := common.HashToken("old-token")

	mock.ExpectBegin()
	mock.ExpectQuery(selectTokenQ).WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("rt-1", "s-1", hash, pgNow.Add(time.Hour), false, pgNow))
	mock.ExpectQuery(lockSessionQ).WithArgs("s-1").WillReturnRows(sessionRow(true))
	mock.ExpectQuery(revokeTokenQ).WithArgs(hash, pgNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "token_hash", "expires_at", "created_at"}).
			AddRow("rt-1", "s-1", hash, pgNow.Add(time.Hour), pgNow))
	mock.ExpectExec(insertTokenQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(touchSessionQ).WithArgs("s-1", pgNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pair, err := s.RotateRefreshToken(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "s-1", pair.SessionID)
	assert.NotEqual(t, "old-token", pair.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_DeadSessionKeepsTokenUntouched(t *testing.T) {
	s, mock := newPostgresSessions(t)
	hash := common.HashToken("old-token")

	mock.ExpectBegin()
	mock.ExpectQuery(selectTokenQ).WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("rt-1", "s-1", hash, pgNow.Add(time.Hour), false, pgNow))
	mock.ExpectQuery(lockSessionQ).WithArgs("s-1").WillReturnRows(sessionRow(false))
	mock.ExpectRollback()

	_, err := s.RotateRefreshToken(context.Background(), "old-token")
	requireKind(t, err, common.ErrorUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_UnknownToken(t *testing.T) {
	s, mock := newPostgresSessions(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectTokenQ).WillReturnRows(sqlmock.NewRows(tokenCols))
	mock.ExpectRollback()

	_, err := s.RotateRefreshToken(context.Background(), "nope")
	requireKind(t, err, common.ErrorUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateSession_LocksSessionBeforeRevokingTokens(t *testing.T) {
	s, mock := newPostgresSessions(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSessionQ).WithArgs("s-1").WillReturnRows(sessionRow(true))
	mock.ExpectExec(revokeAllQ).WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(invalidateSessQ).WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := s.InvalidateSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateSession_MissingSession(t *testing.T) {
	s, mock := newPostgresSessions(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSessionQ).WithArgs("s-1").WillReturnRows(sqlmock.NewRows(sessionCols))
	mock.ExpectCommit()

	changed, err := s.InvalidateSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueConfirmation_LocksUserBeforeCheckingOutstanding(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mailer := &recordingMailer{}
	a := NewAuthService(repomanager.NewPostgresRepositoryManager(db), nil, nil, nil, mailer,
		AuthConfig{ConfirmationTTL: 24 * time.Hour, PasswordResetTTL: time.Hour}, logging.Nop(), metrics.Nop())
	a.now = func() time.Time { return pgNow }

	userCols := []string{"id", "email", "password_hash", "email_verified", "active", "last_login_at", "created_at", "updated_at"}
	confirmCols := []string{"id", "user_id", "token_hash", "created_at", "expires_at", "confirmed_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@x.com", []byte("hash"), false, true, nil, pgNow, pgNow))
	mock.ExpectQuery(`(?s)FROM\s+email_confirmations\s+WHERE\s+user_id`).WithArgs("u-1", pgNow).
		WillReturnRows(sqlmock.NewRows(confirmCols))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+email_confirmations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, a.issueConfirmation(context.Background(), &models.User{ID: "u-1", Email: "a@x.com"}))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, mailer.count("confirmation"))
}
