package visibility

import "pulsedeck/internal/membership/domain"

// RolesForLevel expands a single visibility level chosen by an editor into the stored role list:
// the level and every role above it.
func RolesForLevel(level domain.Role) []domain.Role {
	if !level.Valid() {
		level = domain.RolePublic
	}
	out := make([]domain.Role, 0, domain.RoleAdmin-level+1)
	for r := level; r <= domain.RoleAdmin; r++ {
		out = append(out, r)
	}
	return out
}

// LevelForRoles maps a stored role list back to the level shown in editors.
// Only lists produced by RolesForLevel round-trip; other lists resolve by the fixed precedence below.
func LevelForRoles(roles []domain.Role) domain.Role {
	s := NewRoleSet(roles...)
	switch {
	case s.Has(domain.RolePublic):
		return domain.RolePublic
	case s.Has(domain.RoleMember) && !s.Has(domain.RolePublic):
		return domain.RoleMember
	case s.Has(domain.RoleCommittee) && !s.Has(domain.RoleMember):
		return domain.RoleCommittee
	case s.Has(domain.RoleAdmin) && !s.Has(domain.RoleCommittee):
		return domain.RoleAdmin
	default:
		return domain.RolePublic
	}
}

// ParseRoles converts stored role names. Unknown names are dropped rather than widened to public.
func ParseRoles(names []string) []domain.Role {
	out := make([]domain.Role, 0, len(names))
	for _, n := range names {
		if r, ok := domain.LookupRole(n); ok {
			out = append(out, r)
		}
	}
	return out
}

// RoleNames converts roles to their stored names.
func RoleNames(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}
