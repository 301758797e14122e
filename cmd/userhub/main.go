package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynart/userhub/internal/app"
	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/mobileauth"
	"github.com/dynart/userhub/internal/observability"
	"github.com/dynart/userhub/internal/platform/db"
	"github.com/dynart/userhub/internal/rbac"
	"github.com/dynart/userhub/internal/shared"
	"github.com/dynart/userhub/internal/token"
	"github.com/dynart/userhub/internal/users"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := rbac.Seed(ctx, dbpool); err != nil {
		logger.Error("seed rbac fixtures", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "userhub_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	issuer, err := token.NewIssuer(token.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL(),
	})
	if err != nil {
		logger.Error("configure token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	google, err := identity.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	if err != nil {
		logger.Error("configure google provider", slog.Any("error", err))
		os.Exit(1)
	}

	rbacService := rbac.NewService(rbac.NewStore(dbpool))
	authz := rbac.Middleware{Logger: logger, Tokens: issuer, Service: rbacService}

	identityService := identity.NewService(logger, identity.NewStore(dbpool))
	authHandler := identity.NewHandler(logger, identityService, sessionManager, google, cfg.FrontendURL)

	usersService := users.NewService(users.NewStore(dbpool))
	usersHandler := users.NewHandler(logger, usersService, authz)

	mobileAuthHandler := mobileauth.NewHandler(logger, issuer, identityService, rbacService, google, authz)
	permissionsHandler := rbac.NewPermissionsHandler(logger, authz)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		Authz:              authz,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		MobileAuthHandler:  mobileAuthHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
