package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/confirmations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// postgresRepositories binds the Postgres repositories to one DBTX, either
// the pool or an open transaction.
type postgresRepositories struct {
	db dbx.DBTX
}

func (r postgresRepositories) Users() users.Repository {
	return users.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Sessions() sessions.Repository {
	return sessions.NewPostgresRepository(r.db)
}

func (r postgresRepositories) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Confirmations() confirmations.Repository {
	return confirmations.NewPostgresRepository(r.db)
}

func (r postgresRepositories) PasswordResets() passwordresets.Repository {
	return passwordresets.NewPostgresRepository(r.db)
}

// PostgresRepositoryManager vends PostgreSQL-backed repositories and applies
// the embedded goose migrations.
type PostgresRepositoryManager struct {
	postgresRepositories
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects to dsn with the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{
		postgresRepositories: postgresRepositories{db: db},
		db:                   db,
	}
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepositories{db: tx})
	})
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
