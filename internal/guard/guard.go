// Package guard decides whether a navigation target may be shown to the
// current session.
package guard

import (
	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

// State is the outcome of a guard evaluation.
type State string

// Guard states.
const (
	StateLoading    State = "LOADING"
	StateAnonymous  State = "ANONYMOUS"
	StateAuthorized State = "AUTHORIZED"
	StateDenied     State = "DENIED"
)

// CenterRequirement asks for one of Roles at CenterID.
type CenterRequirement struct {
	CenterID int64
	Roles    []rbac.CenterRole
}

// Requirement describes what a protected view needs. Both parts must hold;
// an empty Requirement only needs an authenticated session.
type Requirement struct {
	GlobalRoles []rbac.GlobalRole
	Center      *CenterRequirement
}

// Decision is the result of Evaluate.
type Decision struct {
	State  State
	Reason string
}

// Allowed reports whether the target may be rendered.
func (d Decision) Allowed() bool { return d.State == StateAuthorized }

// Evaluate applies req to snap.
func Evaluate(snap session.Snapshot, req Requirement) Decision {
	if !snap.Loaded() {
		return Decision{State: StateLoading, Reason: "session loading"}
	}
	id := snap.Identity
	if !snap.Authenticated() {
		return Decision{State: StateAnonymous, Reason: "not signed in"}
	}
	if rbac.IsAdmin(id) {
		return Decision{State: StateAuthorized, Reason: "admin"}
	}
	if len(req.GlobalRoles) > 0 && !rbac.HasGlobalRole(id, req.GlobalRoles...) {
		return Decision{State: StateDenied, Reason: "global role"}
	}
	if c := req.Center; c != nil && len(c.Roles) > 0 {
		if !rbac.HasRoleInCenter(id, c.CenterID, c.Roles...) {
			return Decision{State: StateDenied, Reason: "center role"}
		}
	}
	return Decision{State: StateAuthorized}
}
