package rbac

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// title returns a fresh Caser per call; Casers carry state and are not
// safe for concurrent use.
func title(s string) string {
	return cases.Title(language.Spanish).String(s)
}

var centerRoleLabels = map[CenterRole]string{
	CenterCoordinator: "coordinador",
	CenterTeacher:     "profesor",
	CenterStudent:     "estudiante",
	CenterObserver:    "observador",
}

// Label returns the display name of a center role.
func (r CenterRole) Label() string {
	if l, ok := centerRoleLabels[r]; ok {
		return title(l)
	}
	return "Sin rol"
}

// Label returns the display name of a global role.
func (r GlobalRole) Label() string {
	if r == RoleAdmin {
		return title("administrador")
	}
	return title("usuario")
}

// Label returns a human readable capability name.
func (c Capability) Label() string {
	return title(strings.ReplaceAll(strings.ToLower(string(c)), "_", " "))
}
