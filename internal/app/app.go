package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"byd90-backend/internal/config"
	"byd90-backend/internal/database"
	"byd90-backend/internal/handler"
	"byd90-backend/internal/metrics"
	"byd90-backend/internal/middleware"
	"byd90-backend/internal/notify"
	"byd90-backend/internal/repository"
	"byd90-backend/internal/router"
	"byd90-backend/internal/security"
	"byd90-backend/internal/service"
)

const denylistCleanupInterval = 15 * time.Minute

type App struct {
	cfg          *config.Config
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

// expiringDenylist is implemented by denylists that keep expired rows until swept.
type expiringDenylist interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	users, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	denylist, err := a.openDenylist(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	hasher, err := security.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokens, err := security.NewTokenCodec(cfg.JWTSecret, security.TokenTTLs{
		Access:            cfg.AccessTokenTTL,
		Refresh:           cfg.RefreshTokenTTL,
		PasswordReset:     cfg.PasswordResetTokenTTL,
		EmailVerification: cfg.EmailVerificationTokenTTL,
	}, security.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		appMetrics = metrics.New()
	}

	authService, err := service.NewAuthService(users, hasher, tokens, service.AuthServiceConfig{
		Denylist:            denylist,
		Notifier:            a.startNotifier(),
		Policy:              security.DefaultPasswordPolicy(cfg.PasswordMinLength),
		Recorder:            recorderOrNil(appMetrics),
		RotateRefreshTokens: cfg.RotateRefreshTokens,
		ExposeDevTokens:     cfg.ExposeDevTokens,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	if cfg.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to seed admin account: %w", err)
		}
	}

	userService := service.NewUserService(users)

	var pinger handler.Pinger
	if a.db != nil {
		pinger = a.db
	}

	var routerMetrics router.Metrics
	if appMetrics != nil {
		routerMetrics = appMetrics
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(userService),
		System: handler.NewSystemHandler(cfg.AppName, cfg.AppVersion, cfg.AppDescription, pinger),
		Docs:   handler.NewDocsHandler(cfg.OpenAPISpecPath, cfg.AppName),
	}, routerMetrics)

	if sweeper, ok := denylist.(expiringDenylist); ok {
		cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
		go startCleanupTicker(cleanupCtx, sweeper, denylistCleanupInterval)
		a.cleanupFuncs = append(a.cleanupFuncs, cleanupCancel)
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// Handler exposes the assembled router, mainly for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) openStore(ctx context.Context) (service.IdentityStore, error) {
	if a.cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("using in-memory user store; accounts are lost on restart")
		return repository.NewMemoryUserRepository(), nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if a.cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("database ready")
	return repository.NewUserRepository(db.Pool), nil
}

func (a *App) openDenylist(ctx context.Context) (service.TokenDenylist, error) {
	switch a.cfg.DenylistBackend {
	case config.DenylistMemory:
		return repository.NewMemoryDenylist(), nil
	case config.DenylistPostgres:
		return repository.NewRevokedTokenRepository(a.db.Pool), nil
	case config.DenylistRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })
		slog.Info("token denylist ready", "backend", "redis", "addr", a.cfg.RedisAddr)
		return repository.NewRedisDenylist(client), nil
	default:
		return repository.NoopDenylist{}, nil
	}
}

// startNotifier puts the configured transport behind a delivery queue so
// requests never wait on the mail relay.
func (a *App) startNotifier() notify.Notifier {
	queue := notify.NewQueue(newNotifier(a.cfg), a.cfg.NotifyQueueSize, a.cfg.SMTPTimeout+5*time.Second, slog.Default())
	a.cleanupFuncs = append(a.cleanupFuncs, queue.Close)
	return queue
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.SMTPHost == "" {
		return notify.NewLogNotifier(slog.Default())
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailsFrom,
		Timeout:  cfg.SMTPTimeout,
	})
}

func recorderOrNil(m *metrics.Metrics) service.EventRecorder {
	if m == nil {
		return nil
	}
	return m
}

func startCleanupTicker(ctx context.Context, sweeper expiringDenylist, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweeper.CleanExpired(ctx)
			if err != nil {
				slog.Warn("denylist cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Debug("denylist cleanup", "removed", removed)
			}
		}
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr, "env", a.cfg.AppEnv)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// Close releases background workers and connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
