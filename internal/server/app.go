// Package server wires the gophauth server together: storage, session cache,
// token codec, mail and the account services, served over gRPC with an ops
// HTTP listener for health and metrics.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/ops"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sessioncache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	redis    *redis.Client
	auth     *services.AuthService
	limiter  ratelimit.Limiter
	registry *prometheus.Registry
	metrics  metrics.Recorder
	checks   map[string]ops.Checker
}

// storage is what the backend setup hands to NewApp.
type storage struct {
	repos   repomanager.RepositoryManager
	cache   sessioncache.Cache
	limiter ratelimit.Limiter
	redis   *redis.Client
	checks  map[string]ops.Checker
}

func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.New(out, c.LogLevel, c.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(registry)

	var (
		st  *storage
		err error
	)
	if c.InMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		st = memoryStorage(c)
	} else {
		st, err = externalStorage(ctx, c, logger)
		if err != nil {
			return nil, err
		}
	}

	if err := st.repos.RunMigrations(ctx); err != nil {
		st.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	codec, err := auth.NewCodec(c.TokenFormat, c.SecretKey, c.PasetoSecretKeyHex)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	sender, err := newSender(c, logger)
	if err != nil {
		st.close()
		return nil, err
	}
	mailer := mail.NewMailer(sender, mail.LinkConfig{
		BaseURL:           c.FrontendBaseURL,
		ConfirmationPath:  c.FrontendEmailConfirmationPath,
		PasswordResetPath: c.FrontendPasswordResetPath,
	}, logger, rec)

	creds := services.NewCredentialService(st.repos, c.BcryptCost)
	sessions := services.NewSessionService(st.repos, codec, st.cache, services.SessionConfig{
		AccessTokenTTL: c.AccessTokenValidityDuration,
		SessionTTL:     c.SessionValidityDuration,
		CacheTTL:       c.CacheValidityDuration,
	}, logger, rec)
	as := services.NewAuthService(st.repos, creds, sessions, codec, mailer, services.AuthConfig{
		ConfirmationTTL:  c.ConfirmationValidityDuration,
		PasswordResetTTL: c.PasswordResetValidityDuration,
	}, logger, rec)

	return &App{
		config:   c,
		logger:   logger,
		repos:    st.repos,
		redis:    st.redis,
		auth:     as,
		limiter:  st.limiter,
		registry: registry,
		metrics:  rec,
		checks:   st.checks,
	}, nil
}

func memoryStorage(c *config.Config) *storage {
	cache := sessioncache.NewMemoryCache()
	return &storage{
		repos:   memory.NewRepositoryManager(),
		cache:   cache,
		limiter: ratelimit.NewMemoryLimiter(c.RateLimitWindow, c.RateLimitMax),
		checks:  map[string]ops.Checker{"cache": cache.Ping},
	}
}

func externalStorage(ctx context.Context, c *config.Config, logger logging.Logger) (*storage, error) {
	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	client, err := sessioncache.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	cache := sessioncache.NewRedisCache(client, sessioncache.DefaultBreakerConfig(), logger)

	return &storage{
		repos:   repomanager.NewPostgresRepositoryManager(db),
		cache:   cache,
		limiter: ratelimit.NewRedisLimiter(client, c.RateLimitWindow, c.RateLimitMax),
		redis:   client,
		checks:  map[string]ops.Checker{"database": pinger(db), "cache": cache.Ping},
	}, nil
}

func pinger(db *sql.DB) ops.Checker {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func (s *storage) close() {
	_ = s.repos.Close()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// newSender picks SMTP when a mail host is configured and logs the mail
// otherwise.
func newSender(c *config.Config, logger logging.Logger) (mail.Sender, error) {
	if c.MailHost == "" {
		logger.Warn(context.Background(), "no mail host configured, emails are logged only")
		return mail.NewLogSender(logger), nil
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     c.MailHost,
		Port:     c.MailPort,
		Username: c.MailUsername,
		Password: c.MailPassword,
		From:     c.MailFrom,
		TLS:      c.MailTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("mail init error: %w", err)
	}
	return sender, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC and ops until ctx is cancelled, a signal arrives or one of
// the servers fails, then releases storage.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth, app.limiter, app.metrics)
		return s.Run(ctx)
	})

	if app.config.EndpointAddrOps != "" {
		g.Go(func() error {
			s := ops.NewServer(app.config.EndpointAddrOps, app.logger, ops.NewRouter(app.checks, app.registry))
			return s.Run(ctx)
		})
	}

	err := g.Wait()

	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage", "error", cerr)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
