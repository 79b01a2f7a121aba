package rbac

import "sort"

// allowedRoles maps each capability to the center roles that hold it.
// ADMIN bypasses this table.
var allowedRoles = map[Capability][]CenterRole{
	CreateTree:          {CenterCoordinator, CenterTeacher},
	EditTree:            {CenterCoordinator, CenterTeacher},
	DeleteTree:          {CenterCoordinator},
	ManageCenter:        {CenterCoordinator},
	AssignUsersToCenter: {CenterCoordinator},
}

// AllowedRoles returns the center roles granted a capability.
func AllowedRoles(c Capability) []CenterRole {
	return append([]CenterRole(nil), allowedRoles[c]...)
}

// AllCapabilities lists every capability in a stable order.
func AllCapabilities() []Capability {
	out := make([]Capability, 0, len(allowedRoles))
	for c := range allowedRoles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func roleAllowed(c Capability, role CenterRole) bool {
	if role == "" {
		return false
	}
	for _, r := range allowedRoles[c] {
		if r == role {
			return true
		}
	}
	return false
}
