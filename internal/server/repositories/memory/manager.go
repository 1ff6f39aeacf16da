// Package memory is a process-local RepositoryManager for development and
// tests. Transactions are serialized and applied copy-on-commit, so a unit
// of work that fails leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/confirmations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type state struct {
	users         map[string]models.User
	emails        map[string]string // email -> user id
	sessions      map[string]models.Session
	refreshTokens map[string]models.RefreshToken // keyed by token hash
	confirmations map[string]models.EmailConfirmation
	resets        map[string]models.PasswordReset
}

func newState() *state {
	return &state{
		users:         map[string]models.User{},
		emails:        map[string]string{},
		sessions:      map[string]models.Session{},
		refreshTokens: map[string]models.RefreshToken{},
		confirmations: map[string]models.EmailConfirmation{},
		resets:        map[string]models.PasswordReset{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.refreshTokens {
		c.refreshTokens[k] = v
	}
	for k, v := range s.confirmations {
		c.confirmations[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	return c
}

// RepositoryManager keeps everything in maps guarded by one mutex.
type RepositoryManager struct {
	mu sync.Mutex
	st *state
	view
}

var _ repomanager.RepositoryManager = (*RepositoryManager)(nil)

func NewRepositoryManager() *RepositoryManager {
	m := &RepositoryManager{st: newState()}
	m.view = view{m: m}
	return m
}

// view resolves the state repositories operate on: the committed state under
// the manager lock, or a transaction's private copy.
type view struct {
	m  *RepositoryManager
	tx *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	return fn(v.m.st)
}

func (v view) Users() users.Repository                   { return usersRepo{v} }
func (v view) Sessions() sessions.Repository             { return sessionsRepo{v} }
func (v view) RefreshTokens() refreshtokens.Repository   { return refreshTokensRepo{v} }
func (v view) Confirmations() confirmations.Repository   { return confirmationsRepo{v} }
func (v view) PasswordResets() passwordresets.Repository { return resetsRepo{v} }

func (m *RepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *RepositoryManager) Close() error { return nil }

func (m *RepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := m.st.clone()
	if err := fn(ctx, view{m: m, tx: tx}); err != nil {
		return err
	}
	m.st = tx
	return nil
}
