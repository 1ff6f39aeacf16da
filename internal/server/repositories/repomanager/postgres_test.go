package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestFactories_ReturnRepos(t *testing.T) {
	db, _ := newDB(t)

	var m RepositoryManager = NewPostgresRepositoryManager(db)

	assert.NotNil(t, m.Users())
	assert.NotNil(t, m.Sessions())
	assert.NotNil(t, m.RefreshTokens())
	assert.NotNil(t, m.Confirmations())
	assert.NotNil(t, m.PasswordResets())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, NewPostgresRepositoryManager(db).RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager(db).RunMigrations(context.Background())
	require.EqualError(t, err, "boom")
}

func TestWithTx_CommitsThroughTransaction(t *testing.T) {
	db, mock := newDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+sessions\s+SET\s+last_activity_at`).
		WithArgs("s-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := NewPostgresRepositoryManager(db)
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Sessions().Touch(ctx, "s-1", now)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	m := NewPostgresRepositoryManager(db)
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.RefreshTokens().Create(ctx, &models.RefreshToken{})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
	require.NoError(t, mock.ExpectationsWereMet())
}
