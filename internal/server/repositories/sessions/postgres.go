package sessions

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

const sessionColumns = `id, user_id, expires_at, last_activity_at, user_agent, ip_address, is_valid, created_at`

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (id, user_id, expires_at, last_activity_at, user_agent, ip_address, is_valid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.ExpiresAt, s.LastActivityAt, s.UserAgent, s.IPAddress, s.IsValid, s.CreatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func scanSession(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.LastActivityAt, &s.UserAgent, &s.IPAddress, &s.IsValid, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE sessions SET last_activity_at = $2
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Invalidate(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE sessions SET is_valid = FALSE
		 WHERE id = $1 AND is_valid
		 `
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ListValidIDs(ctx context.Context, userID string) ([]string, error) {
	query :=
		`SELECT id FROM sessions
		 WHERE user_id = $1 AND is_valid
		 ORDER BY created_at
		 `
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
