package guard

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/riordi80/vocational-training-final-project/internal/session"
)

// Recorder counts guard decisions.
type Recorder interface {
	ObserveGuardDecision(route, state string)
}

// Guard enforces manifest rules on HTTP routes.
type Guard struct {
	Manifest   *Manifest
	LoginPath  string
	DeniedPath string
	// Wait bounds how long a request waits for a loading session.
	Wait time.Duration
	// Waiting renders the neutral page shown while the session loads.
	Waiting  http.Handler
	Recorder Recorder
	Logger   *slog.Logger
}

// Protect returns middleware enforcing the manifest rule for pattern. It
// panics when the manifest has no such rule.
func (g *Guard) Protect(pattern string) func(http.Handler) http.Handler {
	rule, ok := g.Manifest.Lookup(pattern)
	if !ok {
		panic(fmt.Sprintf("guard: no manifest rule for %s", pattern))
	}
	if rule.Public {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := rule.Resolve(r)
			if err != nil {
				g.logger().Warn("guard resolve", slog.String("route", pattern), slog.Any("error", err))
			}
			g.enforce(pattern, req, err != nil, next, w, r)
		})
	}
}

// Require returns middleware enforcing a fixed requirement.
func (g *Guard) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.enforce(r.URL.Path, req, false, next, w, r)
		})
	}
}

func (g *Guard) enforce(route string, req Requirement, badParam bool, next http.Handler, w http.ResponseWriter, r *http.Request) {
	snap := g.snapshot(r)
	decision := Evaluate(snap, req)
	if badParam && decision.Allowed() {
		decision = Decision{State: StateDenied, Reason: "center parameter"}
	}
	g.record(route, decision.State)

	switch decision.State {
	case StateAuthorized:
		next.ServeHTTP(w, r)
	case StateLoading:
		g.waiting(w, r)
	case StateAnonymous:
		http.Redirect(w, r, g.loginURL(r), http.StatusSeeOther)
	default:
		g.logger().Info("guard denied",
			slog.String("route", route),
			slog.String("reason", decision.Reason),
			slog.Int64("user_id", snap.Identity.ID),
		)
		g.deny(w, r)
	}
}

// snapshot waits up to Wait for a loading store before reading it.
func (g *Guard) snapshot(r *http.Request) session.Snapshot {
	return session.AwaitSnapshot(r.Context(), session.FromContext(r.Context()), g.Wait)
}

func (g *Guard) waiting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Refresh", "1")
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	if g.Waiting != nil {
		g.Waiting.ServeHTTP(w, r)
		return
	}
	http.Error(w, "Cargando sesión…", http.StatusServiceUnavailable)
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.DeniedPath, http.StatusSeeOther)
}

func (g *Guard) loginURL(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return g.LoginPath
	}
	return g.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

func (g *Guard) record(route string, state State) {
	if g.Recorder != nil {
		g.Recorder.ObserveGuardDecision(route, string(state))
	}
}

func (g *Guard) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// SafeNext returns next when it is a local path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
