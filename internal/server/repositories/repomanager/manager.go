// Package repomanager groups the repositories behind one handle and runs
// units of work against them atomically.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/confirmations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// Repositories vends the per-aggregate repositories sharing one handle.
type Repositories interface {
	Users() users.Repository
	Sessions() sessions.Repository
	RefreshTokens() refreshtokens.Repository
	Confirmations() confirmations.Repository
	PasswordResets() passwordresets.Repository
}

type RepositoryManager interface {
	Repositories

	RunMigrations(ctx context.Context) error

	// WithTx runs fn against repositories bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise. fn
	// must only touch storage through the repos it is handed.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	Close() error
}
