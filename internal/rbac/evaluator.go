package rbac

// IsAdmin reports whether the identity is present and holds the global ADMIN role.
func IsAdmin(id *Identity) bool {
	return id != nil && id.GlobalRole == RoleAdmin
}

// HasCapability reports whether id holds capability c within scope.
// Capabilities are center scoped: without a center only ADMIN is granted.
func HasCapability(id *Identity, c Capability, scope Scope) bool {
	if id == nil {
		return false
	}
	if IsAdmin(id) {
		return true
	}
	if !scope.Valid {
		return false
	}
	m, ok := id.Membership(scope.CenterID)
	if !ok {
		return false
	}
	return roleAllowed(c, m.Role)
}

// HasRoleInCenter reports whether id holds one of roles at centerID.
func HasRoleInCenter(id *Identity, centerID int64, roles ...CenterRole) bool {
	if id == nil {
		return false
	}
	if IsAdmin(id) {
		return true
	}
	m, ok := id.Membership(centerID)
	if !ok || m.Role == "" {
		return false
	}
	for _, r := range roles {
		if r == m.Role {
			return true
		}
	}
	return false
}

// HasGlobalRole reports whether id is ADMIN or holds one of roles.
func HasGlobalRole(id *Identity, roles ...GlobalRole) bool {
	if id == nil {
		return false
	}
	if IsAdmin(id) {
		return true
	}
	for _, r := range roles {
		if r == id.GlobalRole {
			return true
		}
	}
	return false
}

// Capabilities returns the capabilities id holds within scope.
func Capabilities(id *Identity, scope Scope) []Capability {
	var out []Capability
	for _, c := range AllCapabilities() {
		if HasCapability(id, c, scope) {
			out = append(out, c)
		}
	}
	return out
}

// CanCreateTree is HasCapability bound to CreateTree.
func CanCreateTree(id *Identity, centerID int64) bool {
	return HasCapability(id, CreateTree, AtCenter(centerID))
}

// CanEditTree is HasCapability bound to EditTree.
func CanEditTree(id *Identity, centerID int64) bool {
	return HasCapability(id, EditTree, AtCenter(centerID))
}

// CanDeleteTree is HasCapability bound to DeleteTree.
func CanDeleteTree(id *Identity, centerID int64) bool {
	return HasCapability(id, DeleteTree, AtCenter(centerID))
}

// CanManageCenter is HasCapability bound to ManageCenter.
func CanManageCenter(id *Identity, centerID int64) bool {
	return HasCapability(id, ManageCenter, AtCenter(centerID))
}

// CanAssignUsersToCenter is HasCapability bound to AssignUsersToCenter.
func CanAssignUsersToCenter(id *Identity, centerID int64) bool {
	return HasCapability(id, AssignUsersToCenter, AtCenter(centerID))
}
