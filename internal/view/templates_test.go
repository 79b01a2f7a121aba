package view

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riordi80/vocational-training-final-project/internal/apiclient"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
	for _, page := range []string{"pages/login.html", "pages/center.html", "pages/loading.html", "pages/users.html"} {
		assert.Contains(t, engine.pages, page)
	}
}

type centerData struct {
	Center *apiclient.Center
	Trees  []apiclient.Tree
}

func renderCenter(t *testing.T, snap session.Snapshot, centerID int64) string {
	t.Helper()
	engine, err := NewEngine()
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/center.html", TemplateData{
		Title:     "Centro",
		CSRFToken: "tok",
		Session:   snap,
		Data: centerData{
			Center: &apiclient.Center{ID: centerID, Name: "IES Norte"},
			Trees:  []apiclient.Tree{{ID: 11, Name: "Olmo", Species: "Ulmus minor"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	return rr.Body.String()
}

func TestRenderGatesActionsPerCenter(t *testing.T) {
	coord := session.Snapshot{Status: session.StatusAuthenticated, Identity: rbac.NewIdentity(2, "Coordinador", "c@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 5, Role: rbac.CenterCoordinator})}

	body := renderCenter(t, coord, 5)
	assert.Contains(t, body, `/centros/5/arboles/11/delete`)
	assert.Contains(t, body, "Gestionar centro")

	body = renderCenter(t, coord, 6)
	assert.NotContains(t, body, "/arboles/11/delete")
	assert.NotContains(t, body, "Gestionar centro")
	assert.Contains(t, body, "Lecturas")
}

func TestRenderTeacherCanEditNotDelete(t *testing.T) {
	teacher := session.Snapshot{Status: session.StatusAuthenticated, Identity: rbac.NewIdentity(3, "Profesor", "p@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 5, Role: rbac.CenterTeacher})}

	body := renderCenter(t, teacher, 5)
	assert.Contains(t, body, "Editar")
	assert.Contains(t, body, "Añadir árbol")
	assert.NotContains(t, body, "Eliminar")
	// Tree creation and editing have no console endpoint.
	assert.NotContains(t, body, "?nuevo=")
	assert.NotContains(t, body, "?editar=")
	assert.Equal(t, 2, strings.Count(body, `class="action-pending" disabled`))
}

func TestRenderReflectsSessionChanges(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	admin := session.Snapshot{Status: session.StatusAuthenticated, Identity: rbac.NewIdentity(1, "Admin", "a@test.com", rbac.RoleAdmin)}
	rr := httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, "pages/dashboard.html", TemplateData{Session: admin}))
	assert.Contains(t, rr.Body.String(), `href="/usuarios"`)

	rr = httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, "pages/dashboard.html", TemplateData{Session: session.Snapshot{Status: session.StatusAnonymous}}))
	assert.NotContains(t, rr.Body.String(), `href="/usuarios"`)
	assert.Contains(t, rr.Body.String(), "Iniciar sesión")
}

func TestRenderLoginPendingDisablesSubmit(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	type form struct{ Email string }
	data := struct {
		Form    form
		Errors  map[string]string
		Next    string
		Pending bool
	}{Form: form{Email: "a@b.c"}, Pending: true}

	rr := httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, "pages/login.html", TemplateData{CSRFToken: "tok", Data: data}))
	assert.Contains(t, rr.Body.String(), "<form")
	assert.Contains(t, rr.Body.String(), " disabled")
	assert.Contains(t, rr.Body.String(), `value="tok"`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/nope.html", TemplateData{}))
}

func TestFormatNumber(t *testing.T) {
	v := 412.6
	assert.Equal(t, "413", formatNumber(&v, 0))
	assert.Equal(t, "-", formatNumber((*float64)(nil), 0))
	assert.Equal(t, "21.5", formatNumber(21.5, 1))
}
