package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/view"
)

// Recorder counts authentication outcomes.
type Recorder interface {
	ObserveAuthAttempt(operation, outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	stores         *session.Manager
	recorder       Recorder
	validator      *validator.Validate
	hydrationWait  time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, stores *session.Manager, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		stores:         stores,
		recorder:       recorder,
		validator:      validator.New(),
	}
}

// WithHydrationWait bounds how long the login and register pages wait for a
// loading session before deciding whether the visitor is signed in.
func (h *Handler) WithHydrationWait(d time.Duration) *Handler {
	h.hydrationWait = d
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form    loginForm
	Errors  map[string]string
	Next    string
	Pending bool
}

type registerForm struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=150"`
	Password string `validate:"required,min=6"`
}

type registerPageData struct {
	Form    registerForm
	Errors  map[string]string
	Pending bool
}

var fieldMessages = map[string]string{
	"required": "Campo obligatorio",
	"email":    "Email no válido",
	"min":      "Demasiado corto",
	"max":      "Demasiado largo",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := loginPageData{Next: guard.SafeNext(r.URL.Query().Get("next"), "")}
	h.render(w, r, http.StatusOK, "pages/login.html", "Iniciar sesión", data)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Form: form, Next: guard.SafeNext(r.PostFormValue("next"), "")}
	data.Form.Password = ""

	store := session.FromContext(r.Context())
	if store == nil {
		h.logger.Error("session store missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if errs := h.validate(form); errs != nil && !blank(form.Email, form.Password) {
		data.Errors = errs
		h.render(w, r, http.StatusBadRequest, "pages/login.html", "Iniciar sesión", data)
		return
	}

	identity, err := store.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		status := h.failure("login", err, &data.Errors)
		data.Pending = errors.Is(err, session.ErrAuthInFlight)
		h.render(w, r, status, "pages/login.html", "Iniciar sesión", data)
		return
	}
	h.observe("login", "ok")
	h.logger.Info("login", slog.Int64("user_id", identity.ID))
	h.csrfManager.RotateToken(shared.SessionFromContext(r.Context()))
	shared.AddFlashTo(r.Context(), shared.FlashSuccess, "Bienvenido, "+identity.DisplayName)
	http.Redirect(w, r, guard.SafeNext(data.Next, "/"), http.StatusSeeOther)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/register.html", "Registro", registerPageData{})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := registerForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := registerPageData{Form: form}
	data.Form.Password = ""

	store := session.FromContext(r.Context())
	if store == nil {
		h.logger.Error("session store missing during register")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if errs := h.validate(form); errs != nil && !blank(form.Name, form.Email, form.Password) {
		data.Errors = errs
		h.render(w, r, http.StatusBadRequest, "pages/register.html", "Registro", data)
		return
	}

	identity, err := store.Register(r.Context(), form.Name, form.Email, form.Password)
	if err != nil {
		status := h.failure("register", err, &data.Errors)
		data.Pending = errors.Is(err, session.ErrAuthInFlight)
		h.render(w, r, status, "pages/register.html", "Registro", data)
		return
	}
	h.observe("register", "ok")
	h.logger.Info("register", slog.Int64("user_id", identity.ID))
	h.csrfManager.RotateToken(shared.SessionFromContext(r.Context()))
	shared.AddFlashTo(r.Context(), shared.FlashSuccess, "Cuenta creada. Bienvenido, "+identity.DisplayName)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if store := session.FromContext(r.Context()); store != nil {
		if err := store.Logout(r.Context()); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if h.stores != nil {
			h.stores.Forget(sess.ID)
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// failure maps a Login/Register error to a status and form errors.
func (h *Handler) failure(operation string, err error, errs *map[string]string) int {
	if *errs == nil {
		*errs = make(map[string]string)
	}
	if errors.Is(err, session.ErrAuthInFlight) {
		h.observe(operation, "in_flight")
		(*errs)["general"] = "Ya hay un inicio de sesión en curso"
		return http.StatusConflict
	}
	kind := session.KindOf(err)
	h.observe(operation, string(kind))

	var ae *session.AuthError
	if errors.As(err, &ae) {
		(*errs)["general"] = ae.UserMessage()
	} else {
		(*errs)["general"] = (&session.AuthError{Kind: session.Unknown}).UserMessage()
	}
	switch kind {
	case session.Unknown:
		h.logger.Error(operation+" failed", slog.Any("error", err))
		return http.StatusBadGateway
	case session.EmailAlreadyRegistered:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) validate(form any) map[string]string {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"general": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		msg, ok := fieldMessages[fieldErr.Tag()]
		if !ok {
			msg = fieldErr.Error()
		}
		out[fieldErr.Field()] = msg
	}
	return out
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.NewTemplateData(r, h.csrfManager, title, data)
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) observe(operation, outcome string) {
	if h.recorder != nil {
		h.recorder.ObserveAuthAttempt(operation, outcome)
	}
}

// blank reports whether any value is empty after trimming. Blank input is
// left to the session store so it reports MissingFields.
func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func (h *Handler) signedIn(r *http.Request) bool {
	return session.AwaitSnapshot(r.Context(), session.FromContext(r.Context()), h.hydrationWait).Authenticated()
}
