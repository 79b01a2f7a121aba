package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riordi80/vocational-training-final-project/internal/apiclient"
	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/view"
)

// readingsPageSize is the number of readings shown per page.
const readingsPageSize = 20

// API is the subset of the remote API the console pages read and write.
type API interface {
	ListCenters(ctx context.Context) ([]apiclient.Center, error)
	GetCenter(ctx context.Context, id int64) (*apiclient.Center, error)
	ListTreesByCenter(ctx context.Context, centerID int64) ([]apiclient.Tree, error)
	DeleteTree(ctx context.Context, treeID int64) error
	ListUsers(ctx context.Context) ([]apiclient.User, error)
	AssignUserToCenter(ctx context.Context, userID, centerID int64) error
	ListReadings(ctx context.Context, treeID int64, page, size int) (*apiclient.ReadingPage, error)
}

// Handler serves the console pages behind the navigation guard.
type Handler struct {
	logger    *slog.Logger
	api       API
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *guard.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api API, templates *view.Engine, csrf *shared.CSRFManager, g *guard.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, templates: templates, csrf: csrf, guard: g}
}

// MountRoutes registers console routes. Every pattern must have a manifest rule.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Protect("/")).Get("/", h.dashboard)
	r.With(h.guard.Protect("/access-denied")).Get("/access-denied", h.accessDenied)
	r.With(h.guard.Protect("/centros")).Get("/centros", h.listCenters)
	r.With(h.guard.Protect("/centros/{centerID}")).Get("/centros/{centerID}", h.showCenter)
	r.With(h.guard.Protect("/centros/{centerID}/gestion")).Get("/centros/{centerID}/gestion", h.manageCenter)
	r.With(h.guard.Protect("/centros/{centerID}/arboles/{treeID}/delete")).Post("/centros/{centerID}/arboles/{treeID}/delete", h.deleteTree)
	r.With(h.guard.Protect("/centros/{centerID}/usuarios")).Post("/centros/{centerID}/usuarios", h.assignUser)
	r.With(h.guard.Protect("/arboles/{treeID}/lecturas")).Get("/arboles/{treeID}/lecturas", h.listReadings)
}

type centerRow struct {
	Center apiclient.Center
	Member bool
	Role   rbac.CenterRole
}

type centersPage struct {
	Centers []centerRow
	Error   string
}

type centerPage struct {
	Center *apiclient.Center
	Trees  []apiclient.Tree
}

type assignForm struct {
	UserID string
}

type managePage struct {
	Center *apiclient.Center
	Trees  []apiclient.Tree
	Users  []apiclient.User
	Form   assignForm
	Errors map[string]string
}

type readingsPage struct {
	TreeID   int64
	CenterID int64
	Page     *apiclient.ReadingPage
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Inicio", nil)
}

func (h *Handler) accessDenied(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, "pages/access_denied.html", "Acceso denegado", nil)
}

func (h *Handler) listCenters(w http.ResponseWriter, r *http.Request) {
	identity := session.SnapshotFromContext(r.Context()).Identity
	centers, err := h.api.ListCenters(r.Context())
	if err != nil {
		h.logger.Error("list centers failed", slog.Any("error", err))
		h.render(w, r, http.StatusBadGateway, "pages/centers.html", "Centros educativos", centersPage{Error: apiMessage(err)})
		return
	}
	rows := make([]centerRow, 0, len(centers))
	for _, c := range centers {
		row := centerRow{Center: c}
		if m, ok := identity.Membership(c.ID); ok {
			row.Member = true
			row.Role = m.Role
		}
		rows = append(rows, row)
	}
	h.render(w, r, http.StatusOK, "pages/centers.html", "Centros educativos", centersPage{Centers: rows})
}

func (h *Handler) showCenter(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(r, "centerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	center, trees, err := h.loadCenter(r.Context(), centerID)
	if err != nil {
		h.apiFailure(w, r, "load center", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/center.html", center.Name, centerPage{Center: center, Trees: trees})
}

func (h *Handler) manageCenter(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(r, "centerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, err := h.loadManagePage(r.Context(), centerID)
	if err != nil {
		h.apiFailure(w, r, "load center", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/center_manage.html", "Gestión del centro", data)
}

func (h *Handler) deleteTree(w http.ResponseWriter, r *http.Request) {
	centerID, okCenter := pathID(r, "centerID")
	treeID, okTree := pathID(r, "treeID")
	if !okCenter || !okTree {
		http.NotFound(w, r)
		return
	}
	if !rbac.CanDeleteTree(session.SnapshotFromContext(r.Context()).Identity, centerID) {
		http.Redirect(w, r, h.guard.DeniedPath, http.StatusSeeOther)
		return
	}
	location := fmt.Sprintf("/centros/%d/gestion", centerID)
	if err := h.api.DeleteTree(r.Context(), treeID); err != nil {
		h.logger.Error("delete tree failed", slog.Int64("tree_id", treeID), slog.Any("error", err))
		h.redirectWithFlash(w, r, location, shared.FlashError, apiMessage(err))
		return
	}
	h.logger.Info("tree deleted", slog.Int64("tree_id", treeID), slog.Int64("center_id", centerID))
	h.redirectWithFlash(w, r, location, shared.FlashSuccess, "Árbol eliminado")
}

func (h *Handler) assignUser(w http.ResponseWriter, r *http.Request) {
	centerID, ok := pathID(r, "centerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !rbac.CanAssignUsersToCenter(session.SnapshotFromContext(r.Context()).Identity, centerID) {
		http.Redirect(w, r, h.guard.DeniedPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := assignForm{UserID: strings.TrimSpace(r.PostFormValue("user_id"))}
	userID, err := strconv.ParseInt(form.UserID, 10, 64)
	if err != nil || userID <= 0 {
		h.renderManage(w, r, centerID, http.StatusBadRequest, form, map[string]string{"UserID": "Selecciona un usuario válido"})
		return
	}
	if err := h.api.AssignUserToCenter(r.Context(), userID, centerID); err != nil {
		h.logger.Error("assign user failed", slog.Int64("user_id", userID), slog.Int64("center_id", centerID), slog.Any("error", err))
		status := http.StatusBadGateway
		if apiclient.IsStatus(err, http.StatusConflict) || apiclient.IsStatus(err, http.StatusBadRequest) {
			status = http.StatusBadRequest
		}
		h.renderManage(w, r, centerID, status, form, map[string]string{"general": apiMessage(err)})
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/centros/%d/gestion", centerID), shared.FlashSuccess, "Usuario asignado al centro")
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "treeID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	centerID, _ := strconv.ParseInt(r.URL.Query().Get("centro"), 10, 64)
	if centerID < 0 {
		centerID = 0
	}

	readings, err := h.api.ListReadings(r.Context(), treeID, page, readingsPageSize)
	if err != nil {
		h.apiFailure(w, r, "list readings", err)
		return
	}
	data := readingsPage{
		TreeID:   treeID,
		CenterID: centerID,
		Page:     readings,
		HasPrev:  readings.Number > 0,
		HasNext:  readings.Number+1 < readings.TotalPages,
		PrevPage: readings.Number - 1,
		NextPage: readings.Number + 1,
	}
	h.render(w, r, http.StatusOK, "pages/readings.html", "Lecturas", data)
}

func (h *Handler) loadCenter(ctx context.Context, centerID int64) (*apiclient.Center, []apiclient.Tree, error) {
	center, err := h.api.GetCenter(ctx, centerID)
	if err != nil {
		return nil, nil, err
	}
	trees, err := h.api.ListTreesByCenter(ctx, centerID)
	if err != nil {
		return nil, nil, err
	}
	return center, trees, nil
}

// loadManagePage collects the management view. The user list is optional:
// accounts that cannot list users fall back to typing the user id.
func (h *Handler) loadManagePage(ctx context.Context, centerID int64) (managePage, error) {
	center, trees, err := h.loadCenter(ctx, centerID)
	if err != nil {
		return managePage{}, err
	}
	users, err := h.api.ListUsers(ctx)
	if err != nil {
		h.logger.Warn("list users for assignment", slog.Any("error", err))
	}
	return managePage{Center: center, Trees: trees, Users: users}, nil
}

func (h *Handler) renderManage(w http.ResponseWriter, r *http.Request, centerID int64, status int, form assignForm, errs map[string]string) {
	data, err := h.loadManagePage(r.Context(), centerID)
	if err != nil {
		h.apiFailure(w, r, "load center", err)
		return
	}
	data.Form = form
	data.Errors = errs
	h.render(w, r, status, "pages/center_manage.html", "Gestión del centro", data)
}

// apiFailure answers a failed API read: 404 stays 404, anything else is a
// bad gateway.
func (h *Handler) apiFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if apiclient.IsStatus(err, http.StatusNotFound) {
		http.NotFound(w, r)
		return
	}
	if apiclient.IsStatus(err, http.StatusForbidden) {
		http.Redirect(w, r, h.guard.DeniedPath, http.StatusSeeOther)
		return
	}
	h.logger.Error(operation+" failed", slog.Any("error", err))
	http.Error(w, apiMessage(err), http.StatusBadGateway)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlashTo(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func pathID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	return id, err == nil && id > 0
}

// apiMessage returns the server's message when it sent one.
func apiMessage(err error) string {
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "No se pudo contactar con el servidor"
}
