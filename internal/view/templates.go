package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
	"github.com/riordi80/vocational-training-final-project/internal/shared"
	"github.com/riordi80/vocational-training-final-project/web"
)

// Engine renders HTML templates. Each page is parsed together with the
// layouts and partials and executed through the "layout" template.
type Engine struct {
	pages map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Session     session.Snapshot
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	return newEngine(web.Templates)
}

func newEngine(fsys fs.FS) (*Engine, error) {
	funcMap := baseFuncs()
	for name, fn := range NewGate(session.Snapshot{}).Funcs() {
		funcMap[name] = fn
	}
	base, err := template.New("root").Funcs(funcMap).ParseFS(fsys, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages["pages/"+path.Base(file)] = clone
	}
	return &Engine{pages: pages}, nil
}

// Render executes a page with TemplateData and status 200.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a page with the given status. The gate functions
// are bound to data.Session for this render only.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	page, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	tpl, err := page.Clone()
	if err != nil {
		return err
	}
	tpl.Funcs(NewGate(data.Session).Funcs())

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

func baseFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
		"formatTimestamp": func(raw string) string {
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
				if t, err := time.Parse(layout, raw); err == nil {
					return t.Format("02/01/2006 15:04")
				}
			}
			return raw
		},
		"centerRoleLabel": func(role rbac.CenterRole) string { return role.Label() },
		"globalRoleLabel": func(role rbac.GlobalRole) string { return role.Label() },
		"roleLabel": func(raw string) string {
			if role, ok := rbac.ParseCenterRole(raw); ok {
				return role.Label()
			}
			return rbac.ParseGlobalRole(raw).Label()
		},
		"formatNumber": formatNumber,
	}
}

// formatNumber renders a float or an optional float with the given decimals.
func formatNumber(v any, decimals int) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', decimals, 64)
	case *float64:
		if n == nil {
			return "-"
		}
		return strconv.FormatFloat(*n, 'f', decimals, 64)
	default:
		return "-"
	}
}

// NewTemplateData collects the per-request values every page needs. It pops
// at most one flash message from the browser session.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	return TemplateData{
		Title:       title,
		CSRFToken:   csrf.EnsureToken(sess),
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Session:     session.SnapshotFromContext(r.Context()),
		Data:        data,
	}
}
