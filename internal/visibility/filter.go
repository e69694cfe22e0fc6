// Package visibility decides which role-scoped resources (events, wiki articles, feed items, files)
// a viewer may see. The same rule serves the member-facing API and the calendar export.
package visibility

import (
	"sort"

	"pulsedeck/internal/membership/domain"
)

// Policy is the visibility policy attached to a resource.
// An empty WorkingGroupID means the resource is not scoped to a working group.
type Policy struct {
	AllowedRoles   []domain.Role
	WorkingGroupID string
}

// RoleSet is a set of roles.
type RoleSet map[domain.Role]struct{}

// NewRoleSet returns a set holding roles.
func NewRoleSet(roles ...domain.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the roles in ascending order.
func (s RoleSet) Sorted() []domain.Role {
	out := make([]domain.Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Viewer is who is looking: the roles they hold and the working groups they belong to.
type Viewer struct {
	Roles         RoleSet
	WorkingGroups map[string]struct{}
}

// Anonymous is a visitor without identity.
func Anonymous() Viewer {
	return Viewer{Roles: NewRoleSet(domain.RolePublic), WorkingGroups: map[string]struct{}{}}
}

// ForMember is a signed-in member with an active organization. Roles are cumulative:
// an admin also sees what committee and member see.
func ForMember(role domain.Role, workingGroups []string) Viewer {
	roles := NewRoleSet(domain.RolePublic, domain.RoleMember)
	for r := domain.RoleMember; r <= role && r.Valid(); r++ {
		roles[r] = struct{}{}
	}
	return Viewer{Roles: roles, WorkingGroups: groupSet(workingGroups)}
}

// ForCalendarToken is the holder of a per-member calendar export token.
// The holder's own role is added to public and member without the intermediate roles.
func ForCalendarToken(role domain.Role, workingGroups []string) Viewer {
	return Viewer{
		Roles:         NewRoleSet(domain.RolePublic, domain.RoleMember, role),
		WorkingGroups: groupSet(workingGroups),
	}
}

// InWorkingGroup reports whether the viewer belongs to the working group.
func (v Viewer) InWorkingGroup(id string) bool {
	if id == "" {
		return false
	}
	_, ok := v.WorkingGroups[id]
	return ok
}

// GroupIDs returns the viewer's working group ids in ascending order.
func (v Viewer) GroupIDs() []string {
	out := make([]string, 0, len(v.WorkingGroups))
	for id := range v.WorkingGroups {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsVisible reports whether the viewer may see a resource under p. Working group membership alone
// grants visibility, even when AllowedRoles is empty. Empty roles without a group are visible to nobody.
func IsVisible(p Policy, v Viewer) bool {
	for _, r := range p.AllowedRoles {
		if v.Roles.Has(r) {
			return true
		}
	}
	return v.InWorkingGroup(p.WorkingGroupID)
}

func groupSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}
