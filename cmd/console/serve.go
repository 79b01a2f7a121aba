package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/riordi80/vocational-training-final-project/internal/apiclient"
	"github.com/riordi80/vocational-training-final-project/internal/app"
	"github.com/riordi80/vocational-training-final-project/internal/auth"
	"github.com/riordi80/vocational-training-final-project/internal/console"
	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/observability"
	"github.com/riordi80/vocational-training-final-project/internal/platform/cache"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/users"
	"github.com/riordi80/vocational-training-final-project/internal/view"
	"github.com/riordi80/vocational-training-final-project/web"
)

// serve runs the web console until ctx is cancelled.
func serve(ctx context.Context) int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return 0
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	signer, err := shared.NewCookieSigner(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("session cookie signer", slog.Any("error", err))
		return 1
	}
	sessionManager := shared.NewSessionManager(redisClient, "console_session", signer, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		return 1
	}
	manifest, err := guard.ParseManifest(web.Routes)
	if err != nil {
		logger.Error("parse route manifest", slog.Any("error", err))
		return 1
	}

	api := apiclient.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	stores := session.NewManager(redisClient, api, logger, session.ManagerConfig{
		TTL:       cfg.SessionTTL,
		IdleEvict: cfg.SessionIdleEvict,
	})
	go stores.Run(ctx)

	metrics := observability.NewMetrics()
	metrics.TrackLiveSessions(stores.Len)
	g := app.NewGuard(logger, cfg, manifest, templates, csrfManager, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Stores:         stores,
		Guard:          g,
		AuthHandler:    auth.NewHandler(logger, templates, sessionManager, csrfManager, stores, metrics).WithHydrationWait(cfg.SessionHydrationWait),
		SessionAPI:     auth.SessionAPI{Wait: cfg.SessionHydrationWait},
		ConsoleHandler: console.NewHandler(logger, api, templates, csrfManager, g),
		UsersHandler:   users.NewHandler(logger, api, templates, csrfManager, g),
		Metrics:        metrics,
		Redis:          app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			code = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return code
}
