package confirmations

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.EmailConfirmation) error {
	query := `
		INSERT INTO email_confirmations (id, user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.TokenHash, c.CreatedAt, c.ExpiresAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindOutstanding(ctx context.Context, userID string, now time.Time) (*models.EmailConfirmation, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, confirmed_at
		FROM email_confirmations
		WHERE user_id = $1 AND confirmed_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scan(r.db.QueryRowContext(ctx, query, userID, now))
}

func (r *PostgresRepository) Confirm(ctx context.Context, tokenHash string, now time.Time) (*models.EmailConfirmation, error) {
	query := `
		UPDATE email_confirmations SET confirmed_at = $2
		WHERE token_hash = $1 AND confirmed_at IS NULL AND expires_at > $2
		RETURNING id, user_id, token_hash, created_at, expires_at, confirmed_at
	`
	return scan(r.db.QueryRowContext(ctx, query, tokenHash, now))
}

func scan(row *sql.Row) (*models.EmailConfirmation, error) {
	c := &models.EmailConfirmation{}
	var confirmedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &c.TokenHash, &c.CreatedAt, &c.ExpiresAt, &confirmedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		c.ConfirmedAt = &t
	}
	return c, nil
}
