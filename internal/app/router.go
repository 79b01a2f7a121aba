package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/riordi80/vocational-training-final-project/internal/auth"
	"github.com/riordi80/vocational-training-final-project/internal/console"
	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/observability"
	"github.com/riordi80/vocational-training-final-project/internal/platform/httpx"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/users"
	"github.com/riordi80/vocational-training-final-project/internal/view"
	"github.com/riordi80/vocational-training-final-project/web"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Stores         *session.Manager
	Guard          *guard.Guard
	AuthHandler    *auth.Handler
	SessionAPI     auth.SessionAPI
	ConsoleHandler *console.Handler
	UsersHandler   *users.Handler
	Metrics        *observability.Metrics
	Redis          Pinger
}

// NewGuard builds the navigation guard for manifest. While a session is
// still loading it renders the waiting page.
func NewGuard(logger *slog.Logger, cfg *Config, manifest *guard.Manifest, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics) *guard.Guard {
	g := &guard.Guard{
		Manifest:   manifest,
		LoginPath:  "/auth/login",
		DeniedPath: "/access-denied",
		Logger:     logger,
	}
	if cfg != nil {
		g.Wait = cfg.SessionHydrationWait
	}
	if metrics != nil {
		g.Recorder = metrics
	}
	if templates != nil {
		g.Waiting = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := view.NewTemplateData(r, csrf, "Cargando", nil)
			if err := templates.RenderStatus(w, http.StatusServiceUnavailable, "pages/loading.html", data); err != nil {
				logger.Error("render loading page", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			}
		})
	}
	return g
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Stores:         params.Stores,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok"}
		if params.Stores != nil {
			status["live_sessions"] = params.Stores.Len()
		}
		if params.Redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Redis.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["redis"] = err.Error()
				httpx.JSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, status)
	})

	limit := 0
	if params.Config != nil {
		limit = params.Config.LoginRateLimit
	}
	r.Route("/auth", func(r chi.Router) {
		r.Use(forMethod(http.MethodPost, loginLimiter(limit)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		var origins []string
		if params.Config != nil {
			origins = params.Config.CORSAllowedOrigins
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", shared.CSRFHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, r, http.StatusNotFound, "no such endpoint")
		})
		params.SessionAPI.MountRoutes(r)
	})

	if params.ConsoleHandler != nil {
		params.ConsoleHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		params.UsersHandler.MountRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// forMethod applies mw only to requests with the given method.
func forMethod(method string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == method {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
