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
	"github.com/dmitrijs2005/gophauth/internal/server/sessioncache"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	refreshTokenBytes = 40

	// invalidateConcurrency bounds the per-session transactions run at once.
	invalidateConcurrency = 4
)

// TokenPair is what a client receives after login or refresh. The refresh
// token plaintext exists only here; the store keeps its digest.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	UserID       string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}

// ClientInfo describes where a login came from.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type SessionConfig struct {
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
	// CacheTTL bounds every session cache entry.
	CacheTTL time.Duration
}

// SessionService manages sessions and their rotating refresh tokens and
// keeps the session cache in step with the store.
type SessionService struct {
	m       repomanager.RepositoryManager
	codec   auth.Codec
	cache   sessioncache.Cache
	cfg     SessionConfig
	log     logging.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

func NewSessionService(m repomanager.RepositoryManager, codec auth.Codec, cache sessioncache.Cache,
	cfg SessionConfig, log logging.Logger, rec metrics.Recorder) *SessionService {
	return &SessionService{
		m:       m,
		codec:   codec,
		cache:   cache,
		cfg:     cfg,
		log:     log.With("module", "sessions"),
		metrics: rec,
		now:     time.Now,
	}
}

// CreateSession opens a session with its first refresh token in one
// transaction and mints an access token for it.
func (s *SessionService) CreateSession(ctx context.Context, userID string, client ClientInfo) (*TokenPair, error) {
	const op = "sessions.CreateSession"

	refresh, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	session := &models.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		ExpiresAt:      now.Add(s.cfg.SessionTTL),
		LastActivityAt: now,
		UserAgent:      client.UserAgent,
		IPAddress:      client.IPAddress,
		IsValid:        true,
		CreatedAt:      now,
	}

	err = s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if err := repos.Sessions().Create(ctx, session); err != nil {
			return err
		}
		return repos.RefreshTokens().Create(ctx, &models.RefreshToken{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			TokenHash: common.HashToken(refresh),
			ExpiresAt: session.ExpiresAt,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.E(op, common.ErrorNotFound, "user not found")
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	s.cacheSet(ctx, session.ID, sessioncache.State{UserID: userID, IsValid: true}, s.cacheTTL(session, now))

	pair, err := s.issue(session, refresh)
	if err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	s.log.Info(ctx, "session created", "user_id", userID, "session_id", session.ID)
	return pair, nil
}

// RotateRefreshToken trades a refresh token for a new pair. The session row
// is locked before the old token is revoked by a conditional update, so of
// concurrent callers presenting the same token exactly one succeeds and an
// invalidation running alongside sees the successor. An unknown, used or
// expired token and a dead session are all Unauthorized.
func (s *SessionService) RotateRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "sessions.RotateRefreshToken"

	next, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	now := s.now()
	hash := common.HashToken(refreshToken)
	var session *models.Session

	err = s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		old, err := repos.RefreshTokens().GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.E(op, common.ErrorUnauthorized, "invalid refresh token")
			}
			return err
		}

		// session lock first, the same order InvalidateSession takes
		session, err = repos.Sessions().GetForUpdate(ctx, old.SessionID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.E(op, common.ErrorUnauthorized, "invalid refresh token")
			}
			return err
		}
		if !session.Active(now) {
			return common.E(op, common.ErrorUnauthorized, "invalid refresh token")
		}

		if _, err := repos.RefreshTokens().Revoke(ctx, hash, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.E(op, common.ErrorUnauthorized, "invalid refresh token")
			}
			return err
		}

		if err := repos.RefreshTokens().Create(ctx, &models.RefreshToken{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			TokenHash: common.HashToken(next),
			ExpiresAt: session.ExpiresAt,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return repos.Sessions().Touch(ctx, session.ID, now)
	})
	if err != nil {
		if common.KindOf(err) == common.ErrorUnauthorized {
			return nil, err
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}

	pair, err := s.issue(session, next)
	if err != nil {
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	return pair, nil
}

// InvalidateSession closes one session and revokes its refresh tokens. It
// is idempotent and reports whether this call closed the session.
func (s *SessionService) InvalidateSession(ctx context.Context, sessionID string) (bool, error) {
	const op = "sessions.InvalidateSession"

	var changed bool
	err := s.m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		// Holding the session row keeps a concurrent rotation from committing
		// a successor token that the revoke below would not see.
		if _, err := repos.Sessions().GetForUpdate(ctx, sessionID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}
		if _, err := repos.RefreshTokens().RevokeAllForSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		changed, err = repos.Sessions().Invalidate(ctx, sessionID)
		return err
	})
	if err != nil {
		return false, common.Wrap(op, common.ErrorInternal, err)
	}

	s.cacheDelete(ctx, sessionID)
	if changed {
		s.log.Info(ctx, "session invalidated", "session_id", sessionID)
	}
	return changed, nil
}

// InvalidateAllSessions closes every valid session of the user except
// exceptSessionID (empty keeps none). Each session is closed in its own
// transaction. It returns how many sessions this call closed.
func (s *SessionService) InvalidateAllSessions(ctx context.Context, userID, exceptSessionID string) (int, error) {
	const op = "sessions.InvalidateAllSessions"

	ids, err := s.m.Sessions().ListValidIDs(ctx, userID)
	if err != nil {
		return 0, common.Wrap(op, common.ErrorInternal, err)
	}

	closed := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(invalidateConcurrency)
	for i, id := range ids {
		if id == exceptSessionID {
			continue
		}
		i, id := i, id
		g.Go(func() error {
			changed, err := s.InvalidateSession(gctx, id)
			closed[i] = changed
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, common.Wrap(op, common.KindOf(err), err)
	}

	n := 0
	for _, c := range closed {
		if c {
			n++
		}
	}
	s.log.Info(ctx, "user sessions invalidated", "user_id", userID, "count", n)
	return n, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "sessions.GetSession"

	session, err := s.m.Sessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.E(op, common.ErrorNotFound, "session not found")
		}
		return nil, common.Wrap(op, common.ErrorInternal, err)
	}
	return session, nil
}

// CheckSession confirms that the session named by verified claims can still
// authenticate requests. The cache answers when it can; on a miss or cache
// failure the store decides and the cache is repopulated.
func (s *SessionService) CheckSession(ctx context.Context, claims auth.Claims) error {
	const op = "sessions.CheckSession"

	state, ok, err := s.cache.Get(ctx, claims.SessionID)
	switch {
	case err != nil:
		s.metrics.RecordCacheError()
		s.log.Warn(ctx, "session cache read failed", "session_id", claims.SessionID, "error", err)
	case ok:
		s.metrics.RecordCacheHit()
		if !state.IsValid || state.UserID != claims.UserID {
			return common.E(op, common.ErrorUnauthorized, "invalid session")
		}
		return nil
	default:
		s.metrics.RecordCacheMiss()
	}

	session, err := s.GetSession(ctx, claims.SessionID)
	if err != nil {
		if common.KindOf(err) == common.ErrorNotFound {
			return common.E(op, common.ErrorUnauthorized, "invalid session")
		}
		return err
	}

	now := s.now()
	if session.UserID != claims.UserID || !session.Active(now) {
		return common.E(op, common.ErrorUnauthorized, "invalid session")
	}

	s.cacheSet(ctx, session.ID, sessioncache.State{UserID: session.UserID, IsValid: true}, s.cacheTTL(session, now))

	// An invalidation may have committed and evicted between the read above
	// and the write; read again so its eviction is not overwritten.
	recheck, err := s.GetSession(ctx, claims.SessionID)
	if err != nil || !recheck.Active(now) {
		s.cacheDelete(ctx, claims.SessionID)
		if err != nil && common.KindOf(err) != common.ErrorNotFound {
			return err
		}
		return common.E(op, common.ErrorUnauthorized, "invalid session")
	}
	return nil
}

// cacheTTL caps entries at CacheTTL so a lost eviction goes stale for a
// bounded time, and never past the session's own expiry.
func (s *SessionService) cacheTTL(session *models.Session, now time.Time) time.Duration {
	ttl := s.cfg.CacheTTL
	if remaining := session.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	return ttl
}

func (s *SessionService) issue(session *models.Session, refresh string) (*TokenPair, error) {
	access, err := s.codec.Sign(auth.Claims{UserID: session.UserID, SessionID: session.ID}, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    session.ID,
		UserID:       session.UserID,
		ExpiresIn:    s.cfg.AccessTokenTTL,
	}, nil
}

func (s *SessionService) cacheSet(ctx context.Context, sessionID string, state sessioncache.State, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, sessionID, state, ttl); err != nil {
		s.metrics.RecordCacheError()
		s.log.Warn(ctx, "session cache write failed", "session_id", sessionID, "error", err)
	}
}

func (s *SessionService) cacheDelete(ctx context.Context, sessionID string) {
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.metrics.RecordCacheError()
		s.log.Warn(ctx, "session cache delete failed", "session_id", sessionID, "error", err)
	}
}
