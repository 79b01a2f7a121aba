package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riordi80/vocational-training-final-project/internal/apiclient"
	"github.com/riordi80/vocational-training-final-project/internal/auth"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/internal/view"
	_ "github.com/riordi80/vocational-training-final-project/testing"
)

type stubAuth struct {
	mu       sync.Mutex
	calls    int
	identity *rbac.Identity
	err      error
}

func (s *stubAuth) Login(context.Context, string, string) (*rbac.Identity, error) {
	return s.result()
}

func (s *stubAuth) Register(context.Context, string, string, string) (*rbac.Identity, error) {
	return s.result()
}

func (s *stubAuth) result() (*rbac.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.identity.Clone(), nil
}

type countingRecorder struct {
	outcomes []string
}

func (c *countingRecorder) ObserveAuthAttempt(operation, outcome string) {
	c.outcomes = append(c.outcomes, operation+":"+outcome)
}

type harness struct {
	handler  *auth.Handler
	router   chi.Router
	sessions *shared.SessionManager
	stores   *session.Manager
	signer   *shared.CookieSigner
	redis    *miniredis.Miniredis
	recorder *countingRecorder
}

func newHarness(t *testing.T, stub *stubAuth) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	signer, err := shared.NewCookieSigner("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	sessions := shared.NewSessionManager(client, "test_session", signer, time.Hour, false)
	stores := session.NewManager(client, stub, nil, session.ManagerConfig{TTL: time.Hour})
	templates, err := view.NewEngine()
	require.NoError(t, err)
	rec := &countingRecorder{}
	handler := auth.NewHandler(nil, templates, sessions, shared.NewCSRFManager("csrfsecret"), stores, rec)
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.Route("/api", auth.SessionAPI{Wait: time.Second}.MountRoutes)
	return &harness{
		handler:  handler,
		router:   router,
		sessions: sessions,
		stores:   stores,
		signer:   signer,
		redis:    mr,
		recorder: rec,
	}
}

// serve runs fn with the browser session identified by sessionID, or a new
// one when sessionID is empty.
func (h *harness) serve(t *testing.T, req *http.Request, sessionID string, fn http.HandlerFunc) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	if sessionID != "" {
		value, err := h.signer.Sign(sessionID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: value})
	}
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	store := h.stores.Acquire(req.Context(), sess.ID)
	<-store.Ready()

	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = session.ContextWithStore(ctx, store)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	fn(res, req)
	require.NoError(t, h.sessions.Commit(ctx, res, sess))
	return res, sess
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func coordinator() *rbac.Identity {
	return rbac.NewIdentity(2, "Coordinador", "coord@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 5, Role: rbac.CenterCoordinator})
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t, &stubAuth{})

	res, sess := h.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login?next=/centros/5", nil), "", h.handler.ShowLoginForTest)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `value="/centros/5"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginSuccessRedirectsToNext(t *testing.T) {
	stub := &stubAuth{identity: coordinator()}
	h := newHarness(t, stub)

	form := url.Values{"email": {"coord@test.com"}, "password": {"secret"}, "next": {"/centros/5/gestion"}}
	res, sess := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/centros/5/gestion", res.Header().Get("Location"))
	assert.True(t, h.stores.Acquire(context.Background(), sess.ID).Snapshot().Authenticated())
	assert.True(t, h.redis.Exists(session.IdentityKey(sess.ID)))
	assert.Equal(t, []string{"login:ok"}, h.recorder.outcomes)

	res, _ = h.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), sess.ID, h.handler.ShowLoginForTest)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestLoginRejectsForeignNext(t *testing.T) {
	h := newHarness(t, &stubAuth{identity: coordinator()})
	form := url.Values{"email": {"coord@test.com"}, "password": {"secret"}, "next": {"https://evil.example/"}}
	res, _ := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	stub := &stubAuth{err: &apiclient.StatusError{Status: http.StatusUnauthorized, Message: "Credenciales inválidas"}}
	h := newHarness(t, stub)

	form := url.Values{"email": {"user@test.local"}, "password": {"wrongpass"}}
	res, sess := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Usuario o contraseña incorrecta")
	assert.NotContains(t, res.Body.String(), "wrongpass")
	assert.False(t, h.redis.Exists(session.IdentityKey(sess.ID)))
	assert.Equal(t, []string{"login:INVALID_CREDENTIALS"}, h.recorder.outcomes)
}

func TestLoginInactiveAccount(t *testing.T) {
	h := newHarness(t, &stubAuth{err: &apiclient.StatusError{Status: http.StatusForbidden}})
	form := url.Values{"email": {"user@test.local"}, "password": {"pw"}}
	res, _ := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "La cuenta no está activa")
}

func TestLoginUpstreamFailure(t *testing.T) {
	h := newHarness(t, &stubAuth{err: &apiclient.StatusError{Status: http.StatusInternalServerError, Message: "Base de datos caída"}})
	form := url.Values{"email": {"user@test.local"}, "password": {"pw"}}
	res, _ := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "Base de datos caída")
}

func TestLoginMissingFieldsSkipsAPI(t *testing.T) {
	stub := &stubAuth{identity: coordinator()}
	h := newHarness(t, stub)

	form := url.Values{"email": {"   "}, "password": {"secret"}}
	res, _ := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Todos los campos son requeridos")
	assert.Zero(t, stub.calls)
}

func TestLoginMalformedEmail(t *testing.T) {
	stub := &stubAuth{identity: coordinator()}
	h := newHarness(t, stub)

	form := url.Values{"email": {"not-an-email"}, "password": {"secret"}}
	res, _ := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email no válido")
	assert.Zero(t, stub.calls)
}

func TestRegisterConflict(t *testing.T) {
	h := newHarness(t, &stubAuth{err: &apiclient.StatusError{Status: http.StatusConflict}})
	form := url.Values{"name": {"Ana"}, "email": {"ana@test.com"}, "password": {"secreto1"}}
	res, _ := h.serve(t, postForm("/auth/register", form), "", h.router.ServeHTTP)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "El email ya está registrado")
}

func TestRegisterSignsIn(t *testing.T) {
	h := newHarness(t, &stubAuth{identity: rbac.NewIdentity(7, "Ana", "ana@test.com", rbac.RoleStandard)})
	form := url.Values{"name": {"Ana"}, "email": {"ana@test.com"}, "password": {"secreto1"}}
	res, sess := h.serve(t, postForm("/auth/register", form), "", h.router.ServeHTTP)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.True(t, h.stores.Acquire(context.Background(), sess.ID).Snapshot().Authenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	h := newHarness(t, &stubAuth{identity: coordinator()})
	form := url.Values{"email": {"coord@test.com"}, "password": {"secret"}}
	_, sess := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)
	store := h.stores.Acquire(context.Background(), sess.ID)
	require.True(t, store.Snapshot().Authenticated())

	res, _ := h.serve(t, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), sess.ID, h.router.ServeHTTP)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Equal(t, session.StatusAnonymous, store.Snapshot().Status)
	assert.False(t, h.redis.Exists(session.IdentityKey(sess.ID)))
	assert.False(t, h.redis.Exists("console:web:"+sess.ID))
}

func TestSessionAPI(t *testing.T) {
	h := newHarness(t, &stubAuth{identity: coordinator()})
	form := url.Values{"email": {"coord@test.com"}, "password": {"secret"}}
	_, sess := h.serve(t, postForm("/auth/login", form), "", h.handler.HandleLoginForTest)

	res, _ := h.serve(t, httptest.NewRequest(http.MethodGet, "/api/session", nil), sess.ID, h.router.ServeHTTP)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Status string `json:"status"`
		Admin  bool   `json:"admin"`
		User   struct {
			Email string `json:"email"`
		} `json:"user"`
		Centers []struct {
			CenterID     int64    `json:"centroId"`
			Role         string   `json:"rolEnCentro"`
			Capabilities []string `json:"capabilities"`
		} `json:"centers"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "AUTHENTICATED", body.Status)
	assert.False(t, body.Admin)
	assert.Equal(t, "coord@test.com", body.User.Email)
	require.Len(t, body.Centers, 1)
	assert.ElementsMatch(t, []string{"ASSIGN_USERS_TO_CENTER", "CREATE_TREE", "DELETE_TREE", "EDIT_TREE", "MANAGE_CENTER"}, body.Centers[0].Capabilities)

	res, _ = h.serve(t, httptest.NewRequest(http.MethodGet, "/api/session", nil), "", h.router.ServeHTTP)
	assert.JSONEq(t, `{"status":"ANONYMOUS","admin":false}`, res.Body.String())
}

type slowStorage struct {
	release chan struct{}
	data    []byte
}

func (s *slowStorage) Load(ctx context.Context) ([]byte, error) {
	select {
	case <-s.release:
		return s.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *slowStorage) Save(context.Context, []byte) error { return nil }

func (s *slowStorage) Clear(context.Context) error { return nil }

func TestLoginPageWaitsForLoadingSession(t *testing.T) {
	h := newHarness(t, &stubAuth{})
	h.handler.WithHydrationWait(time.Second)

	raw, err := json.Marshal(coordinator())
	require.NoError(t, err)
	storage := &slowStorage{release: make(chan struct{}), data: raw}
	store := session.NewStore(storage, &stubAuth{}, nil)
	store.Start(context.Background())
	require.Equal(t, session.StatusLoading, store.Snapshot().Status)
	time.AfterFunc(20*time.Millisecond, func() { close(storage.release) })

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req = req.WithContext(session.ContextWithStore(req.Context(), store))
	res := httptest.NewRecorder()
	h.handler.ShowLoginForTest(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}
