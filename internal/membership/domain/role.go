package domain

import "strings"

// Role is an organization-scoped app role. Higher values see and may do more.
type Role int

const (
	RolePublic Role = iota
	RoleMember
	RoleCommittee
	RoleAdmin
)

var roleNames = [...]string{"public", "member", "committee", "admin"}

// String returns the wire name of the role.
func (r Role) String() string {
	if r < RolePublic || r > RoleAdmin {
		return roleNames[RolePublic]
	}
	return roleNames[r]
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RolePublic && r <= RoleAdmin
}

// ParseRole converts a stored role name to a Role.
// Unknown or empty values map to RolePublic (least privilege).
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "committee":
		return RoleCommittee
	case "member":
		return RoleMember
	default:
		return RolePublic
	}
}

// LookupRole is ParseRole for callers that must reject unknown names.
func LookupRole(s string) (Role, bool) {
	for i, n := range roleNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Role(i), true
		}
	}
	return RolePublic, false
}

// AllRoles returns every role in ascending order.
func AllRoles() []Role {
	return []Role{RolePublic, RoleMember, RoleCommittee, RoleAdmin}
}

// WorkingGroupRole is a member's role inside one working group ("AG").
type WorkingGroupRole string

const (
	WorkingGroupMember WorkingGroupRole = "member"
	WorkingGroupAdmin  WorkingGroupRole = "admin"
	WorkingGroupLead   WorkingGroupRole = "lead"
)

// ParseWorkingGroupRole maps a stored working group role; unknown values become WorkingGroupMember.
func ParseWorkingGroupRole(s string) WorkingGroupRole {
	switch WorkingGroupRole(strings.ToLower(strings.TrimSpace(s))) {
	case WorkingGroupAdmin:
		return WorkingGroupAdmin
	case WorkingGroupLead:
		return WorkingGroupLead
	default:
		return WorkingGroupMember
	}
}
