package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a refresh token row.
func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, session_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.SessionID, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByHash loads a token row by digest.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, session_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = $1
	`
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&t.ID, &t.SessionID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Revoke is the compare-and-swap at the heart of rotation: the WHERE clause
// only matches an active row, and Postgres re-evaluates it after a
// concurrent writer commits.
func (r *PostgresRepository) Revoke(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token_hash = $1 AND NOT revoked AND expires_at > $2
		RETURNING id, session_id, token_hash, expires_at, created_at
	`
	t := &models.RefreshToken{Revoked: true}
	err := r.db.QueryRowContext(ctx, query, tokenHash, now).
		Scan(&t.ID, &t.SessionID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// RevokeAllForSession revokes every still-active token of the session.
func (r *PostgresRepository) RevokeAllForSession(ctx context.Context, sessionID string) (int64, error) {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE session_id = $1 AND NOT revoked
	`
	res, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// CountActive returns how many unrevoked, unexpired tokens the session holds.
func (r *PostgresRepository) CountActive(ctx context.Context, sessionID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE session_id = $1 AND NOT revoked AND expires_at > $2
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, sessionID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
