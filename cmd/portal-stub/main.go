package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/portal-session/internal/api/http"
	"github.com/spec-kit/portal-session/internal/config"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/persistence"
	"github.com/spec-kit/portal-session/internal/repository"
	"github.com/spec-kit/portal-session/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger, false)
	if err != nil {
		logger.Fatal("failed to init redis", zap.Error(err))
	}
	defer redis.Close()

	accounts := repository.NewMemoryAccountRepository()
	if pool := pg.PoolHandle(); pool != nil {
		accounts = repository.NewAccountRepository(pool)
	}
	refreshTokens := repository.NewMemoryRefreshTokenRepository()
	if err := redis.Ping(ctx); err == nil {
		refreshTokens = repository.NewRefreshTokenRepository(redis.Client)
	} else {
		logger.Warn("refresh tokens kept in memory", zap.Error(err))
		redis = nil
	}

	metrics := observability.NewMetrics()
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AccountRepo:      accounts,
		RefreshTokenRepo: refreshTokens,
		Logger:           logger,
	})
	contentService := service.NewContentService(repository.NewMemoryNoticeRepository())
	seed(ctx, cfg.Seed, authService, contentService, logger)

	app := httptransport.NewApp(httptransport.ServerDeps{
		Name:           cfg.App.Name,
		Version:        cfg.App.Version,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Accounts:       accounts,
		Auth:           authService,
		APIKeys:        service.NewAPIKeyService(repository.NewMemoryAPIKeyRepository()),
		Content:        contentService,
		Postgres:       pg,
		Redis:          redis,
	})

	go func() {
		logger.Info("portal stub listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// seed creates the demo accounts and notices. Accounts that already exist
// in a persistent store are left alone.
func seed(ctx context.Context, cfg config.SeedConfig, auth *service.AuthService, content *service.ContentService, logger *zap.Logger) {
	accounts := []service.RegisterInput{
		{Role: domain.RoleUser, LoginID: cfg.UserLoginID, DisplayName: "Demo user", Password: cfg.UserPassword},
		{Role: domain.RoleAdmin, LoginID: cfg.AdminLoginID, DisplayName: "Demo admin", Password: cfg.AdminPassword, RoleCode: "SUPER", RoleName: "Super administrator"},
	}
	for _, in := range accounts {
		if in.Password == "" {
			continue
		}
		if _, err := auth.Register(ctx, in); err != nil {
			logger.Warn("seed account skipped", zap.String("role", string(in.Role)), zap.String("login_id", in.LoginID), zap.Error(err))
			continue
		}
		logger.Info("seeded account", zap.String("role", string(in.Role)), zap.String("login_id", in.LoginID))
	}

	now := time.Now()
	notices := []domain.Notice{
		{Title: "Welcome to the portal", Body: "Sign in to see member notices.", Pinned: true, CreatedAt: now},
		{Title: "Scheduled maintenance", Body: "The portal is read-only on Sunday 02:00-04:00 UTC.", MembersOnly: true, CreatedAt: now},
	}
	for i := range notices {
		if err := content.Publish(ctx, &notices[i]); err != nil {
			logger.Warn("seed notice skipped", zap.String("title", notices[i].Title), zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
