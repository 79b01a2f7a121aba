package rbac

import "strings"

// GlobalRole is the account-wide role of an identity.
type GlobalRole string

// Global roles.
const (
	RoleAdmin    GlobalRole = "ADMIN"
	RoleStandard GlobalRole = "STANDARD"
)

// CenterRole is the role an identity holds at one educational center.
type CenterRole string

// Center roles. The zero value grants nothing.
const (
	CenterCoordinator CenterRole = "COORDINATOR"
	CenterTeacher     CenterRole = "TEACHER"
	CenterStudent     CenterRole = "STUDENT"
	CenterObserver    CenterRole = "OBSERVER"
)

// Capability names an action that is evaluated against an identity and a center.
type Capability string

// Capabilities known to the console.
const (
	CreateTree          Capability = "CREATE_TREE"
	EditTree            Capability = "EDIT_TREE"
	DeleteTree          Capability = "DELETE_TREE"
	ManageCenter        Capability = "MANAGE_CENTER"
	AssignUsersToCenter Capability = "ASSIGN_USERS_TO_CENTER"
)

// legacyCoordinator is the global role value older backends hand out to
// center coordinators.
const legacyCoordinator = "COORDINADOR"

// ParseGlobalRole maps a wire value onto a GlobalRole. Anything that is not
// ADMIN is a standard account.
func ParseGlobalRole(raw string) GlobalRole {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleStandard
}

// ParseCenterRole maps English or Spanish wire values onto a CenterRole.
// Unknown values return the zero CenterRole and false.
func ParseCenterRole(raw string) (CenterRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COORDINATOR", "COORDINADOR":
		return CenterCoordinator, true
	case "TEACHER", "PROFESOR":
		return CenterTeacher, true
	case "STUDENT", "ESTUDIANTE":
		return CenterStudent, true
	case "OBSERVER", "OBSERVADOR":
		return CenterObserver, true
	default:
		return "", false
	}
}

// ParseCapability maps a capability name onto a Capability.
func ParseCapability(raw string) (Capability, bool) {
	c := Capability(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := allowedRoles[c]; ok {
		return c, true
	}
	return "", false
}

// CenterMembership ties an identity to a center with a role.
type CenterMembership struct {
	CenterID int64
	Role     CenterRole
}

// Identity is the authenticated user as seen by the console.
type Identity struct {
	ID          int64
	DisplayName string
	Email       string
	GlobalRole  GlobalRole
	Centers     []CenterMembership
}

// NewIdentity builds an Identity, keeping the first membership per center.
func NewIdentity(id int64, name, email string, role GlobalRole, centers ...CenterMembership) *Identity {
	return &Identity{
		ID:          id,
		DisplayName: name,
		Email:       email,
		GlobalRole:  role,
		Centers:     dedupeCenters(centers),
	}
}

// Membership returns the membership for a center, if any.
func (i *Identity) Membership(centerID int64) (CenterMembership, bool) {
	if i == nil {
		return CenterMembership{}, false
	}
	for _, m := range i.Centers {
		if m.CenterID == centerID {
			return m, true
		}
	}
	return CenterMembership{}, false
}

// Clone returns a deep copy so callers cannot mutate a session's identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Centers = append([]CenterMembership(nil), i.Centers...)
	return &out
}

// CenterIDs lists the centers the identity is a member of.
func (i *Identity) CenterIDs() []int64 {
	if i == nil {
		return nil
	}
	ids := make([]int64, 0, len(i.Centers))
	for _, m := range i.Centers {
		ids = append(ids, m.CenterID)
	}
	return ids
}

func dedupeCenters(in []CenterMembership) []CenterMembership {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(in))
	out := make([]CenterMembership, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m.CenterID]; ok {
			continue
		}
		seen[m.CenterID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Scope is an optional center id.
type Scope struct {
	CenterID int64
	Valid    bool
}

// AnyCenter is the absent scope.
var AnyCenter = Scope{}

// AtCenter scopes a check to a single center.
func AtCenter(id int64) Scope {
	return Scope{CenterID: id, Valid: true}
}
