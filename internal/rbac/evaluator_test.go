package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
)

func coordinatorAt(centerID int64) *rbac.Identity {
	return rbac.NewIdentity(2, "Coordinador", "coord@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: centerID, Role: rbac.CenterCoordinator})
}

func TestAdminHoldsEveryCapabilityEverywhere(t *testing.T) {
	admin := rbac.NewIdentity(1, "Admin", "admin@test.com", rbac.RoleAdmin)
	for _, c := range rbac.AllCapabilities() {
		for _, scope := range []rbac.Scope{rbac.AnyCenter, rbac.AtCenter(1), rbac.AtCenter(99)} {
			assert.True(t, rbac.HasCapability(admin, c, scope), "%s in %+v", c, scope)
		}
	}
	assert.True(t, rbac.IsAdmin(admin))
}

func TestCoordinatorScopedToOwnCenter(t *testing.T) {
	id := coordinatorAt(1)
	assert.True(t, rbac.CanDeleteTree(id, 1))
	assert.False(t, rbac.CanDeleteTree(id, 2))
	assert.True(t, rbac.CanManageCenter(id, 1))
	assert.True(t, rbac.CanAssignUsersToCenter(id, 1))
	assert.False(t, rbac.IsAdmin(id))
}

func TestTeacherCapabilities(t *testing.T) {
	id := rbac.NewIdentity(3, "Profesor", "prof@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 1, Role: rbac.CenterTeacher})
	assert.True(t, rbac.CanCreateTree(id, 1))
	assert.True(t, rbac.CanEditTree(id, 1))
	assert.False(t, rbac.CanDeleteTree(id, 1))
	assert.False(t, rbac.CanManageCenter(id, 1))
}

func TestStudentAndObserverHoldNothing(t *testing.T) {
	for _, role := range []rbac.CenterRole{rbac.CenterStudent, rbac.CenterObserver, ""} {
		id := rbac.NewIdentity(4, "x", "x@test.com", rbac.RoleStandard, rbac.CenterMembership{CenterID: 1, Role: role})
		assert.Empty(t, rbac.Capabilities(id, rbac.AtCenter(1)), "role %q", role)
	}
}

func TestNilIdentityIsDenied(t *testing.T) {
	for _, c := range rbac.AllCapabilities() {
		assert.False(t, rbac.HasCapability(nil, c, rbac.AtCenter(1)))
		assert.False(t, rbac.HasCapability(nil, c, rbac.AnyCenter))
	}
	assert.False(t, rbac.IsAdmin(nil))
	assert.False(t, rbac.HasRoleInCenter(nil, 1, rbac.CenterCoordinator))
	assert.False(t, rbac.HasGlobalRole(nil, rbac.RoleStandard))
	assert.Nil(t, rbac.Capabilities(nil, rbac.AtCenter(1)))
}

func TestNonAdminWithoutCenterIsDenied(t *testing.T) {
	id := coordinatorAt(1)
	for _, c := range rbac.AllCapabilities() {
		assert.False(t, rbac.HasCapability(id, c, rbac.AnyCenter))
	}
}

func TestHasRoleInCenter(t *testing.T) {
	id := coordinatorAt(5)
	assert.True(t, rbac.HasRoleInCenter(id, 5, rbac.CenterCoordinator))
	assert.False(t, rbac.HasRoleInCenter(id, 6, rbac.CenterCoordinator))
	assert.False(t, rbac.HasRoleInCenter(id, 5, rbac.CenterTeacher))
	assert.False(t, rbac.HasRoleInCenter(id, 5))

	admin := rbac.NewIdentity(1, "Admin", "admin@test.com", rbac.RoleAdmin)
	assert.True(t, rbac.HasRoleInCenter(admin, 6, rbac.CenterCoordinator))
}

func TestHasGlobalRole(t *testing.T) {
	std := coordinatorAt(1)
	assert.True(t, rbac.HasGlobalRole(std, rbac.RoleStandard))
	assert.False(t, rbac.HasGlobalRole(std, rbac.RoleAdmin))
	assert.True(t, rbac.HasGlobalRole(rbac.NewIdentity(1, "", "a@b", rbac.RoleAdmin), rbac.RoleStandard))
}

func TestNewIdentityKeepsFirstMembershipPerCenter(t *testing.T) {
	id := rbac.NewIdentity(7, "n", "n@test.com", rbac.RoleStandard,
		rbac.CenterMembership{CenterID: 1, Role: rbac.CenterStudent},
		rbac.CenterMembership{CenterID: 1, Role: rbac.CenterCoordinator},
		rbac.CenterMembership{CenterID: 2, Role: rbac.CenterTeacher},
	)
	assert.Equal(t, []int64{1, 2}, id.CenterIDs())
	assert.False(t, rbac.CanDeleteTree(id, 1))
}

func TestCloneIsIndependent(t *testing.T) {
	id := coordinatorAt(1)
	cp := id.Clone()
	cp.Centers[0].Role = rbac.CenterObserver
	assert.True(t, rbac.CanDeleteTree(id, 1))
	assert.Nil(t, (*rbac.Identity)(nil).Clone())
}

func TestParsing(t *testing.T) {
	assert.Equal(t, rbac.RoleAdmin, rbac.ParseGlobalRole(" admin "))
	assert.Equal(t, rbac.RoleStandard, rbac.ParseGlobalRole("USUARIO"))
	assert.Equal(t, rbac.RoleStandard, rbac.ParseGlobalRole(""))

	role, ok := rbac.ParseCenterRole("profesor")
	assert.True(t, ok)
	assert.Equal(t, rbac.CenterTeacher, role)
	_, ok = rbac.ParseCenterRole("JARDINERO")
	assert.False(t, ok)

	c, ok := rbac.ParseCapability("delete_tree")
	assert.True(t, ok)
	assert.Equal(t, rbac.DeleteTree, c)
	_, ok = rbac.ParseCapability("FLY")
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Coordinador", rbac.CenterCoordinator.Label())
	assert.Equal(t, "Sin rol", rbac.CenterRole("").Label())
	assert.Equal(t, "Administrador", rbac.RoleAdmin.Label())
	assert.Equal(t, "Delete Tree", rbac.DeleteTree.Label())
}
