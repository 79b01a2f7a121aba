package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riordi80/vocational-training-final-project/internal/platform/httpx"
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

// SessionAPI exposes the current session as JSON for the mobile shell.
type SessionAPI struct {
	// Wait bounds how long a loading session is awaited.
	Wait time.Duration
}

// MountRoutes registers the session endpoint.
func (a SessionAPI) MountRoutes(r chi.Router) {
	r.Get("/session", a.show)
}

type centerView struct {
	CenterID     int64             `json:"centroId"`
	Role         rbac.CenterRole   `json:"rolEnCentro,omitempty"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

type sessionView struct {
	Status       session.Status    `json:"status"`
	Identity     *rbac.Identity    `json:"user,omitempty"`
	Admin        bool              `json:"admin"`
	Capabilities []rbac.Capability `json:"capabilities,omitempty"`
	Centers      []centerView      `json:"centers,omitempty"`
}

func (a SessionAPI) show(w http.ResponseWriter, r *http.Request) {
	snap := session.AwaitSnapshot(r.Context(), session.FromContext(r.Context()), a.Wait)
	out := sessionView{Status: snap.Status}
	if snap.Authenticated() {
		id := snap.Identity
		out.Identity = id
		out.Admin = rbac.IsAdmin(id)
		if out.Admin {
			out.Capabilities = rbac.Capabilities(id, rbac.AnyCenter)
		}
		for _, m := range id.Centers {
			caps := rbac.Capabilities(id, rbac.AtCenter(m.CenterID))
			if caps == nil {
				caps = []rbac.Capability{}
			}
			out.Centers = append(out.Centers, centerView{CenterID: m.CenterID, Role: m.Role, Capabilities: caps})
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	status := http.StatusOK
	if !snap.Loaded() {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, out)
}
