package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riordi80/vocational-training-final-project/internal/guard"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

const testManifest = `
routes:
  - pattern: /
  - pattern: /auth/login
    public: true
  - pattern: /usuarios
    roles: [ADMIN]
  - pattern: /centros/{centerID}/gestion
    center:
      param: centerID
      roles: [COORDINATOR]
`

// memStorage is an in-memory Storage whose Load can be held back.
type memStorage struct {
	mu      sync.Mutex
	data    []byte
	release chan struct{}
}

func (m *memStorage) Load(ctx context.Context) ([]byte, error) {
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, session.ErrNotFound
	}
	return m.data, nil
}

func (m *memStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

func (m *memStorage) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

type identityAuth struct{ id *rbac.Identity }

func (a identityAuth) Login(context.Context, string, string) (*rbac.Identity, error) {
	return a.id, nil
}

func (a identityAuth) Register(context.Context, string, string, string) (*rbac.Identity, error) {
	return a.id, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) ObserveGuardDecision(route, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[route+" "+state]++
}

func signedIn(t *testing.T, id *rbac.Identity) *session.Store {
	t.Helper()
	store := session.NewStore(&memStorage{}, identityAuth{id: id}, nil)
	if id == nil {
		store.Initialize(context.Background())
		return store
	}
	_, err := store.Login(context.Background(), id.Email, "pw")
	require.NoError(t, err)
	return store
}

func newRouter(t *testing.T, g *guard.Guard) http.Handler {
	t.Helper()
	manifest, err := guard.ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	g.Manifest = manifest
	g.LoginPath = "/auth/login"
	g.DeniedPath = "/access-denied"

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r := chi.NewRouter()
	r.With(g.Protect("/")).Get("/", ok)
	r.With(g.Protect("/auth/login")).Get("/auth/login", ok)
	r.With(g.Protect("/usuarios")).Get("/usuarios", ok)
	r.With(g.Protect("/centros/{centerID}/gestion")).Get("/centros/{centerID}/gestion", ok)
	r.With(g.Protect("/centros/{centerID}/gestion")).Post("/centros/{centerID}/gestion", ok)
	return r
}

func serve(h http.Handler, store *session.Store, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if store != nil {
		req = req.WithContext(session.ContextWithStore(req.Context(), store))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestProtectAnonymousRedirectsToLogin(t *testing.T) {
	h := newRouter(t, &guard.Guard{})

	rr := serve(h, signedIn(t, nil), http.MethodGet, "/centros/5/gestion?tab=arboles")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login?next=%2Fcentros%2F5%2Fgestion%3Ftab%3Darboles", rr.Header().Get("Location"))

	rr = serve(h, nil, http.MethodPost, "/centros/5/gestion")
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestProtectPublicRoute(t *testing.T) {
	h := newRouter(t, &guard.Guard{})
	rr := serve(h, nil, http.MethodGet, "/auth/login")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectCenterScenario(t *testing.T) {
	rec := &countingRecorder{}
	h := newRouter(t, &guard.Guard{Recorder: rec})
	store := signedIn(t, rbac.NewIdentity(2, "Coordinador", "coord@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 5, Role: rbac.CenterCoordinator}))

	rr := serve(h, store, http.MethodGet, "/centros/5/gestion")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, store, http.MethodGet, "/centros/6/gestion")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))

	rr = serve(h, store, http.MethodGet, "/usuarios")
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))

	rr = serve(h, store, http.MethodGet, "/centros/abc/gestion")
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))

	assert.Equal(t, 1, rec.counts["/centros/{centerID}/gestion AUTHORIZED"])
	assert.Equal(t, 2, rec.counts["/centros/{centerID}/gestion DENIED"])
	assert.Equal(t, 1, rec.counts["/usuarios DENIED"])
}

func TestProtectAdminBypass(t *testing.T) {
	h := newRouter(t, &guard.Guard{})
	store := signedIn(t, rbac.NewIdentity(1, "Admin", "admin@test.com", rbac.RoleAdmin))

	assert.Equal(t, http.StatusOK, serve(h, store, http.MethodGet, "/usuarios").Code)
	assert.Equal(t, http.StatusOK, serve(h, store, http.MethodGet, "/centros/99/gestion").Code)
}

func TestProtectLoadingRendersWaitingPage(t *testing.T) {
	h := newRouter(t, &guard.Guard{Wait: 20 * time.Millisecond})
	storage := &memStorage{release: make(chan struct{})}
	store := session.NewStore(storage, identityAuth{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	rr := serve(h, store, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Refresh"))
	assert.Empty(t, rr.Header().Get("Location"))

	close(storage.release)
	<-store.Ready()
	rr = serve(h, store, http.MethodGet, "/")
	assert.Equal(t, "/auth/login?next=%2F", rr.Header().Get("Location"))
}

func TestProtectWaitsForHydration(t *testing.T) {
	h := newRouter(t, &guard.Guard{Wait: 2 * time.Second})
	admin := rbac.NewIdentity(1, "Admin", "admin@test.com", rbac.RoleAdmin)
	data, err := admin.MarshalJSON()
	require.NoError(t, err)
	storage := &memStorage{data: data, release: make(chan struct{})}
	store := session.NewStore(storage, identityAuth{}, nil)
	store.Start(context.Background())

	time.AfterFunc(20*time.Millisecond, func() { close(storage.release) })
	rr := serve(h, store, http.MethodGet, "/usuarios")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectUnknownPatternPanics(t *testing.T) {
	g := &guard.Guard{}
	newRouter(t, g)
	assert.Panics(t, func() { g.Protect("/nope") })
}

func TestRequireFixedRequirement(t *testing.T) {
	g := &guard.Guard{LoginPath: "/auth/login", DeniedPath: "/access-denied"}
	h := g.Require(guard.Requirement{GlobalRoles: []rbac.GlobalRole{rbac.RoleAdmin}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	store := signedIn(t, rbac.NewIdentity(4, "U", "u@test.com", rbac.RoleStandard))
	rr := serve(h, store, http.MethodGet, "/x")
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/centros/5", guard.SafeNext("/centros/5", "/"))
	assert.Equal(t, "/", guard.SafeNext("https://evil.example", "/"))
	assert.Equal(t, "/", guard.SafeNext("//evil.example", "/"))
	assert.Equal(t, "/", guard.SafeNext("", "/"))
}
