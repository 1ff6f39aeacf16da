package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/sessioncache"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mail struct {
	kind, email, token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail
	err  error
}

func (m *recordingMailer) SendConfirmation(_ context.Context, email, token string) error {
	return m.record("confirmation", email, token)
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, token string) error {
	return m.record("reset", email, token)
}

func (m *recordingMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail{kind, email, token})
	return nil
}

func (m *recordingMailer) last(t *testing.T, kind string) mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return mail{}
}

func (m *recordingMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

// failingCache simulates a cache outage.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) (sessioncache.State, bool, error) {
	return sessioncache.State{}, false, errCacheDown
}
func (failingCache) Set(context.Context, string, sessioncache.State, time.Duration) error {
	return errCacheDown
}
func (failingCache) Delete(context.Context, string) error         { return errCacheDown }
func (failingCache) Exists(context.Context, string) (bool, error) { return false, errCacheDown }

type harness struct {
	repos    *memory.RepositoryManager
	cache    sessioncache.Cache
	codec    *auth.JWTCodec
	mailer   *recordingMailer
	creds    *CredentialService
	sessions *SessionService
	auth     *AuthService
}

type harnessOption func(h *harness)

func withCache(c sessioncache.Cache) harnessOption {
	return func(h *harness) { h.cache = c }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		repos:  memory.NewRepositoryManager(),
		cache:  sessioncache.NewMemoryCache(),
		codec:  auth.NewJWTCodec([]byte("test-secret")),
		mailer: &recordingMailer{},
	}
	for _, o := range opts {
		o(h)
	}

	log := logging.Nop()
	h.creds = NewCredentialService(h.repos, bcrypt.MinCost)
	h.sessions = NewSessionService(h.repos, h.codec, h.cache, SessionConfig{
		AccessTokenTTL: 15 * time.Minute,
		SessionTTL:     7 * 24 * time.Hour,
		CacheTTL:       24 * time.Hour,
	}, log, metrics.Nop())
	h.auth = NewAuthService(h.repos, h.creds, h.sessions, h.codec, h.mailer, AuthConfig{
		ConfirmationTTL:  24 * time.Hour,
		PasswordResetTTL: time.Hour,
	}, log, metrics.Nop())
	return h
}

// setNow pins the clock of every service.
func (h *harness) setNow(now time.Time) {
	clock := func() time.Time { return now }
	h.creds.now = clock
	h.sessions.now = clock
	h.auth.now = clock
}

func (h *harness) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := h.auth.Register(context.Background(), email, password, ClientInfo{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(common.KindOf(err), kind), "want kind %v, got %v", kind, err)
}
