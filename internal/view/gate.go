package view

import (
	"html/template"
	"strings"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
	"github.com/riordi80/vocational-training-final-project/internal/session"
)

// GateRule is the condition a Gate checks. Set fields are ANDed; an empty
// rule grants nothing.
type GateRule struct {
	Capability  rbac.Capability
	Roles       []rbac.GlobalRole
	CenterRoles []rbac.CenterRole
	Scope       rbac.Scope
}

// Gate answers render-time capability questions for one snapshot. It never
// redirects.
type Gate struct {
	identity *rbac.Identity
}

// NewGate binds a gate to a session snapshot.
func NewGate(snap session.Snapshot) Gate {
	if !snap.Authenticated() {
		return Gate{}
	}
	return Gate{identity: snap.Identity}
}

// Allows evaluates rule against the bound identity.
func (g Gate) Allows(rule GateRule) bool {
	if g.identity == nil {
		return false
	}
	checked := false
	if rule.Capability != "" {
		if !rbac.HasCapability(g.identity, rule.Capability, rule.Scope) {
			return false
		}
		checked = true
	}
	if len(rule.CenterRoles) > 0 {
		if !rule.Scope.Valid || !rbac.HasRoleInCenter(g.identity, rule.Scope.CenterID, rule.CenterRoles...) {
			return false
		}
		checked = true
	}
	if len(rule.Roles) > 0 {
		if !rbac.HasGlobalRole(g.identity, rule.Roles...) {
			return false
		}
		checked = true
	}
	return checked
}

// Render returns children when rule holds, otherwise fallback.
func (g Gate) Render(rule GateRule, children, fallback template.HTML) template.HTML {
	if g.Allows(rule) {
		return children
	}
	return fallback
}

// Funcs exposes the gate to templates:
//
//	{{if can "DELETE_TREE" .Center.ID}}...{{end}}
//	{{if hasCenterRole .Center.ID "COORDINATOR"}}...{{end}}
//	{{if hasRole "ADMIN"}}...{{end}}
func (g Gate) Funcs() template.FuncMap {
	return template.FuncMap{
		"can": func(capability string, center ...int64) bool {
			c, ok := rbac.ParseCapability(capability)
			if !ok {
				return false
			}
			scope := rbac.AnyCenter
			if len(center) > 0 {
				scope = rbac.AtCenter(center[0])
			}
			return g.Allows(GateRule{Capability: c, Scope: scope})
		},
		"hasCenterRole": func(centerID int64, roles ...string) bool {
			rule := GateRule{Scope: rbac.AtCenter(centerID)}
			for _, raw := range roles {
				if role, ok := rbac.ParseCenterRole(raw); ok {
					rule.CenterRoles = append(rule.CenterRoles, role)
				}
			}
			if len(rule.CenterRoles) == 0 {
				return false
			}
			return g.Allows(rule)
		},
		"hasRole": func(roles ...string) bool {
			rule := GateRule{}
			for _, raw := range roles {
				role := rbac.GlobalRole(strings.ToUpper(strings.TrimSpace(raw)))
				if role == rbac.RoleAdmin || role == rbac.RoleStandard {
					rule.Roles = append(rule.Roles, role)
				}
			}
			if len(rule.Roles) == 0 {
				return false
			}
			return g.Allows(rule)
		},
		"isAdmin": func() bool { return rbac.IsAdmin(g.identity) },
		"currentUser": func() *rbac.Identity { return g.identity.Clone() },
	}
}
