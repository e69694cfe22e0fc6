package domain

// Membership links an identity to one organization with one app role.
type Membership struct {
	MemberID         string
	MemberName       string
	OrganizationID   string
	OrganizationName string
	OrganizationSlug string
	Role             Role
}

// Profile is the fully loaded member profile for one (user, organization) pair.
type Profile struct {
	ID             string
	UserID         string
	OrganizationID string
	Name           string
	Email          string
	Phone          string
	Role           Role
	// Permissions are explicit capability grants. They only ever add to what Role implies.
	Permissions   []string
	CalendarToken string
	// WorkingGroups maps working group id to the member's role in that group.
	WorkingGroups map[string]WorkingGroupRole
}

// HasPermission reports whether cap is one of the profile's explicit grants.
func (p *Profile) HasPermission(cap string) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Permissions {
		if g == cap {
			return true
		}
	}
	return false
}

// WorkingGroupIDs returns the ids of all working groups the member belongs to, in any role.
func (p *Profile) WorkingGroupIDs() []string {
	if p == nil || len(p.WorkingGroups) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.WorkingGroups))
	for id := range p.WorkingGroups {
		out = append(out, id)
	}
	return out
}

// ActiveContext is the selected membership plus its loaded profile.
type ActiveContext struct {
	Membership Membership
	Profile    *Profile
}

// Role returns the effective app role of the active context. The freshly loaded profile wins over
// the membership row, which may have been resolved earlier.
func (a *ActiveContext) Role() Role {
	if a == nil {
		return RolePublic
	}
	if a.Profile != nil {
		return a.Profile.Role
	}
	return a.Membership.Role
}

// OrganizationID returns the organization of the active context, or "" when a is nil.
func (a *ActiveContext) OrganizationID() string {
	if a == nil {
		return ""
	}
	return a.Membership.OrganizationID
}

// FindByOrganization returns the membership for orgID in list, or nil.
func FindByOrganization(list []Membership, orgID string) *Membership {
	if orgID == "" {
		return nil
	}
	for i := range list {
		if list[i].OrganizationID == orgID {
			m := list[i]
			return &m
		}
	}
	return nil
}
