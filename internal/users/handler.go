package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riordi80/vocational-training-final-project/internal/apiclient"
	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/view"
)

// Lister lists accounts from the remote API.
type Lister interface {
	ListUsers(ctx context.Context) ([]apiclient.User, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	api       Lister
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *guard.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api Lister, templates *view.Engine, csrf *shared.CSRFManager, g *guard.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, templates: templates, csrf: csrf, guard: g}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Protect("/usuarios")).Get("/usuarios", h.listUsers)
}

type listPage struct {
	Users []apiclient.User
	Error string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.api.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		msg := "No se pudo cargar la lista de usuarios"
		var se *apiclient.StatusError
		if errors.As(err, &se) && se.Message != "" {
			msg = se.Message
		}
		h.render(w, r, http.StatusBadGateway, listPage{Error: msg})
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	h.render(w, r, http.StatusOK, listPage{Users: users})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data listPage) {
	viewData := view.NewTemplateData(r, h.csrf, "Usuarios", data)
	if err := h.templates.RenderStatus(w, status, "pages/users.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
