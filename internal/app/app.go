// Package app assembles the ledger service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sendit-ledger/config"
	httpHandler "sendit-ledger/internal/adapter/http/handler"
	"sendit-ledger/internal/adapter/lock"
	"sendit-ledger/internal/adapter/storage/memory"
	pgStorage "sendit-ledger/internal/adapter/storage/postgres"
	redisStorage "sendit-ledger/internal/adapter/storage/redis"
	sqliteStorage "sendit-ledger/internal/adapter/storage/sqlite"
	"sendit-ledger/internal/adapter/telegram"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/internal/service"
	"sendit-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deps overrides connections that New would otherwise open itself.
type Deps struct {
	Redis  *goredis.Client     // used instead of dialing cfg.Redis
	Sender ports.MessageSender // used instead of a Telegram bot
}

// App is a fully wired ledger process.
type App struct {
	cfg    *config.Config
	log    zerolog.Logger
	router *gin.Engine
	bot    *telegram.Bot
	cmds   *telegram.CommandHandler

	Ledger       ports.LedgerService
	Verification ports.VerificationService

	closers []func()
}

// New connects the configured backends and wires every component.
// Call Close to release them.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps Deps) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}

	store, storeHealth, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	checkers := []ports.HealthChecker{storeHealth}

	var (
		rdb         *goredis.Client
		limiter     ports.RateLimiter
		nonces      ports.NonceStore
		idempotency ports.IdempotencyCache
	)
	if cfg.Redis.Enabled {
		rdb = deps.Redis
		if rdb == nil {
			rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
			if err != nil {
				return nil, fmt.Errorf("connecting to redis: %w", err)
			}
			a.closers = append(a.closers, func() { rdb.Close() })
		}
		limiter = redisStorage.NewRateLimitStore(rdb)
		nonces = redisStorage.NewUpdateDedup(rdb)
		idempotency = redisStorage.NewReplayCache(rdb)
		checkers = append(checkers, redisStorage.NewHealth(rdb))
	}

	var locker ports.AccountLocker = lock.NewLocalLocker()
	if cfg.Lock.Backend == config.LockRedis {
		if rdb == nil {
			return nil, errors.New("lock.backend redis requires a redis connection")
		}
		locker = lock.NewRedisLocker(rdb, cfg.Lock, logger.Component(log, "lock"))
	}

	starting, recipient, err := cfg.Ledger.Balances()
	if err != nil {
		return nil, err
	}

	ledger := service.NewLedgerService(store, locker, idempotency, service.LedgerOptions{
		StartingBalance:       starting,
		RecipientBalance:      recipient,
		RequirePositiveAmount: cfg.Ledger.RequirePositiveAmount,
		HistoryLimit:          cfg.Ledger.HistoryLimit,
	}, logger.Component(log, "ledger"))

	verification := service.NewVerificationService(store.OTPs(), service.NewCryptoOTPGenerator(), limiter, service.VerificationOptions{
		TTL:              cfg.OTP.TTL,
		ConsumeOnSuccess: cfg.OTP.ConsumeOnSuccess,
		MaxAttempts:      cfg.OTP.MaxAttempts,
		AttemptWindow:    cfg.OTP.AttemptWindow,
	}, logger.Component(log, "verification"))

	auditSvc := service.NewAuditService(store.Audit(), logger.Component(log, "audit"))

	a.Ledger = ledger
	a.Verification = verification

	sender := deps.Sender
	if sender == nil && cfg.Telegram.Token != "" {
		a.bot, err = telegram.NewBot(cfg.Telegram.Token, logger.Component(log, "telegram"))
		if err != nil {
			return nil, err
		}
		sender = a.bot
	}
	if sender != nil {
		a.cmds = telegram.NewCommandHandler(ledger, verification, sender, nonces, auditSvc, logger.Component(log, "telegram"))
	} else {
		log.Warn().Msg("Telegram token not configured, bot commands disabled")
	}

	routes := httpHandler.RouterDeps{
		LedgerSvc:      ledger,
		WebhookPath:    cfg.Telegram.WebhookPath,
		WebhookSecret:  cfg.Telegram.SecretToken,
		RateLimiter:    limiter,
		AuditSvc:       auditSvc,
		HealthCheckers: checkers,
		Logger:         logger.Component(log, "http"),
	}
	if a.cmds != nil {
		routes.Updates = a.cmds
	}
	a.router = httpHandler.SetupRouter(routes)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (ports.LedgerStore, ports.HealthChecker, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pgStorage.Migrate(ctx, pool, a.log); err != nil {
			return nil, nil, err
		}
		return pgStorage.NewStore(pool), pgStorage.NewHealthCheck(pool), nil

	case config.DriverSQLite:
		db, err := sqliteStorage.Open(ctx, a.cfg.Storage.SQLitePath, a.log)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		store := sqliteStorage.NewStore(db)
		return store, store, nil

	case config.DriverMemory:
		a.log.Warn().Msg("Using in-memory storage, balances are lost on restart")
		store := memory.NewStore()
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP and Telegram updates until ctx is canceled, then shuts
// the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.bot != nil && a.cmds != nil {
		if a.cfg.Telegram.WebhookURL != "" {
			a.log.Info().Str("bot", a.bot.Username()).Str("mode", "webhook").Msg("Telegram updates enabled")
			if err := a.bot.SetWebhook(a.cfg.Telegram.WebhookURL, a.cfg.Telegram.SecretToken); err != nil {
				a.log.Error().Err(err).Msg("Failed to register Telegram webhook")
			}
		} else {
			a.log.Info().Str("bot", a.bot.Username()).Str("mode", "polling").Msg("Telegram updates enabled")
			go func() {
				if err := a.bot.Poll(ctx, a.cmds); err != nil {
					errCh <- err
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	a.log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return runErr
}

// Close releases every connection opened by New, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
