package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cooarq/cooarq-portal/internal/app"
	"github.com/cooarq/cooarq-portal/internal/auth"
	"github.com/cooarq/cooarq-portal/internal/dashboard"
	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/observability"
	"github.com/cooarq/cooarq-portal/internal/platform/cache"
	"github.com/cooarq/cooarq-portal/internal/rbac"
	"github.com/cooarq/cooarq-portal/internal/shared"
	"github.com/cooarq/cooarq-portal/internal/view"
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

	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client, closeBackend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("init backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeBackend()

	locales, err := i18n.New(cfg.DefaultLocale)
	if err != nil {
		logger.Error("init locales", slog.Any("error", err))
		os.Exit(1)
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository()
	store := auth.NewStore(client, authRepo, logger, auth.StoreConfig{
		ProfileTTL:      cfg.ProfileTTL,
		RefreshMargin:   cfg.TokenRefreshMargin,
		ChangeRetention: cfg.SessionTTL,
	})
	defer store.Close()
	unsubscribe := store.Subscribe(func(ev auth.Event) {
		metrics.AuthEvent(string(ev.Kind))
	})
	defer unsubscribe()

	authService := auth.NewService(store, client, authRepo, logger, auth.ServiceConfig{
		CallbackURL: cfg.SiteURL("/auth/callback"),
		ResetURL:    cfg.SiteURL("/reset-password"),
		FailureHook: metrics.BackendFailure,
	})
	authHandler := auth.NewHandler(logger, authService, store, templates, sessionManager, csrfManager, auth.HandlerConfig{
		ResetRedirectDelay: cfg.ResetRedirectDelay,
		SubmitLimiter:      app.AuthLimiter(cfg),
	})
	dashboardHandler := dashboard.NewHandler(logger, store, templates, csrfManager)
	permissionsHandler := rbac.NewPermissionsHandler(logger, store)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Locales:            locales,
		Store:              store,
		AuthHandler:        authHandler,
		DashboardHandler:   dashboardHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
