package access

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"pulsedeck/internal/membership/domain"
)

func membershipValue(m domain.Membership) map[string]interface{} {
	return map[string]interface{}{
		"member_id":         m.MemberID,
		"member_name":       m.MemberName,
		"organization_id":   m.OrganizationID,
		"organization_name": m.OrganizationName,
		"organization_slug": m.OrganizationSlug,
		"role":              m.Role.String(),
	}
}

func membershipFromValue(v map[string]interface{}) domain.Membership {
	return domain.Membership{
		MemberID:         stringField(v, "member_id"),
		MemberName:       stringField(v, "member_name"),
		OrganizationID:   stringField(v, "organization_id"),
		OrganizationName: stringField(v, "organization_name"),
		OrganizationSlug: stringField(v, "organization_slug"),
		Role:             domain.ParseRole(stringField(v, "role")),
	}
}

func membershipsValue(list []domain.Membership) []interface{} {
	out := make([]interface{}, 0, len(list))
	for _, m := range list {
		out = append(out, membershipValue(m))
	}
	return out
}

func membershipsFromValue(v interface{}) []domain.Membership {
	items, _ := v.([]interface{})
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.Membership, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, membershipFromValue(m))
		}
	}
	return out
}

func profileValue(p *domain.Profile) interface{} {
	if p == nil {
		return nil
	}
	perms := make([]interface{}, 0, len(p.Permissions))
	for _, g := range p.Permissions {
		perms = append(perms, g)
	}
	ids := make([]string, 0, len(p.WorkingGroups))
	for id := range p.WorkingGroups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	groups := make(map[string]interface{}, len(ids))
	for _, id := range ids {
		groups[id] = string(p.WorkingGroups[id])
	}
	return map[string]interface{}{
		"id":              p.ID,
		"user_id":         p.UserID,
		"organization_id": p.OrganizationID,
		"name":            p.Name,
		"email":           p.Email,
		"phone":           p.Phone,
		"role":            p.Role.String(),
		"permissions":     perms,
		"working_groups":  groups,
	}
}

// profileFromValue decodes a profile. The calendar token never crosses the wire.
func profileFromValue(v interface{}) *domain.Profile {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	p := &domain.Profile{
		ID:             stringField(m, "id"),
		UserID:         stringField(m, "user_id"),
		OrganizationID: stringField(m, "organization_id"),
		Name:           stringField(m, "name"),
		Email:          stringField(m, "email"),
		Phone:          stringField(m, "phone"),
		Role:           domain.ParseRole(stringField(m, "role")),
		WorkingGroups:  make(map[string]domain.WorkingGroupRole),
	}
	if perms, ok := m["permissions"].([]interface{}); ok {
		for _, g := range perms {
			if s, ok := g.(string); ok {
				p.Permissions = append(p.Permissions, s)
			}
		}
	}
	if groups, ok := m["working_groups"].(map[string]interface{}); ok {
		for id, r := range groups {
			s, _ := r.(string)
			p.WorkingGroups[id] = domain.ParseWorkingGroupRole(s)
		}
	}
	return p
}

func activeValue(ac *domain.ActiveContext) interface{} {
	if ac == nil {
		return nil
	}
	return map[string]interface{}{
		"membership": membershipValue(ac.Membership),
		"profile":    profileValue(ac.Profile),
	}
}

func activeFromValue(v interface{}) *domain.ActiveContext {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	mv, _ := m["membership"].(map[string]interface{})
	return &domain.ActiveContext{
		Membership: membershipFromValue(mv),
		Profile:    profileFromValue(m["profile"]),
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}
