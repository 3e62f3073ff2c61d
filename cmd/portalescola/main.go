package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/portalescola/portalescola/internal/app"
	"github.com/portalescola/portalescola/internal/auth"
	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/observability"
	"github.com/portalescola/portalescola/internal/platform/cache"
	"github.com/portalescola/portalescola/internal/platform/db"
	"github.com/portalescola/portalescola/internal/roles"
	"github.com/portalescola/portalescola/internal/session"
	"github.com/portalescola/portalescola/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	registry := roles.NewRegistry()
	roleRepo := roles.NewRepository(pool)
	roleService := roles.NewService(registry, roleRepo, jobClient, logger)
	if err := roleService.Hydrate(ctx); err != nil {
		logger.Error("hydrate roles", slog.Any("error", err))
		os.Exit(1)
	}

	permissionCache := authz.NewCache(cfg.PermissionCacheTTL)
	resolver := authz.NewResolver(registry, permissionCache, metrics)

	broadcaster := authz.NewCacheBroadcaster(redisClient, logger)
	broadcaster.Listen(ctx, permissionCache)

	provider := auth.NewPGIdentityProvider(pool, cfg.TokenTTL)
	profiles := auth.NewPGProfileStore(pool)
	sessions := session.NewManager(redisClient, provider, permissionCache, cfg.SessionTTL)

	facade := auth.NewFacade(provider, profiles, sessions, resolver, metrics, logger, cfg.UpstreamTimeout)
	facade.OnAuthStateChange(func(event auth.AuthEvent, userID string) {
		logger.Info("auth state change", slog.String("event", string(event)), slog.String("user_id", userID))
	})

	authHandler := auth.NewHandler(logger, facade)
	rolesHandler := roles.NewHandler(logger, roleService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		RolesHandler: rolesHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
