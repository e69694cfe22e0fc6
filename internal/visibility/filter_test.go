package visibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsedeck/internal/membership/domain"
)

func TestViewerConstructors(t *testing.T) {
	assert.Equal(t, []domain.Role{domain.RolePublic}, Anonymous().Roles.Sorted())

	testCases := []struct {
		role domain.Role
		want []domain.Role
	}{
		{domain.RolePublic, []domain.Role{domain.RolePublic, domain.RoleMember}},
		{domain.RoleMember, []domain.Role{domain.RolePublic, domain.RoleMember}},
		{domain.RoleCommittee, []domain.Role{domain.RolePublic, domain.RoleMember, domain.RoleCommittee}},
		{domain.RoleAdmin, domain.AllRoles()},
	}
	for _, tc := range testCases {
		t.Run("member "+tc.role.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, ForMember(tc.role, nil).Roles.Sorted())
		})
	}

	token := ForCalendarToken(domain.RoleAdmin, []string{"wg-1", ""})
	assert.Equal(t, []domain.Role{domain.RolePublic, domain.RoleMember, domain.RoleAdmin}, token.Roles.Sorted())
	assert.Equal(t, []string{"wg-1"}, token.GroupIDs())
}

func TestIsVisible(t *testing.T) {
	committeeOnly := Policy{AllowedRoles: []domain.Role{domain.RoleCommittee, domain.RoleAdmin}}
	membersOnly := Policy{AllowedRoles: []domain.Role{domain.RoleMember}}
	agOnly := Policy{AllowedRoles: []domain.Role{}, WorkingGroupID: "wg-1"}
	nobody := Policy{}

	testCases := []struct {
		name   string
		policy Policy
		viewer Viewer
		want   bool
	}{
		{"anonymous cannot see member resource", membersOnly, Anonymous(), false},
		{"anonymous sees public", Policy{AllowedRoles: RolesForLevel(domain.RolePublic)}, Anonymous(), true},
		{"committee sees committee resource", committeeOnly, ForMember(domain.RoleCommittee, nil), true},
		{"member cannot see committee resource", committeeOnly, ForMember(domain.RoleMember, nil), false},
		{"admin sees member resource", membersOnly, ForMember(domain.RoleAdmin, nil), true},
		{"group member sees ag-only resource", agOnly, ForMember(domain.RoleMember, []string{"wg-1"}), true},
		{"non group member cannot see ag-only resource", agOnly, ForMember(domain.RoleAdmin, []string{"wg-2"}), false},
		{"group grants beyond roles", Policy{AllowedRoles: []domain.Role{domain.RoleAdmin}, WorkingGroupID: "wg-1"}, ForMember(domain.RoleMember, []string{"wg-1"}), true},
		{"empty policy invisible to admin", nobody, ForMember(domain.RoleAdmin, []string{"wg-1"}), false},
		{"token holder sees own role", Policy{AllowedRoles: []domain.Role{domain.RoleAdmin}}, ForCalendarToken(domain.RoleAdmin, nil), true},
		{"committee token holder sees admin-only resource", Policy{AllowedRoles: []domain.Role{domain.RoleAdmin}}, ForCalendarToken(domain.RoleCommittee, nil), false},
		{"admin token holder misses committee-only resource", Policy{AllowedRoles: []domain.Role{domain.RoleCommittee}}, ForCalendarToken(domain.RoleAdmin, nil), false},
		{"token holder group", agOnly, ForCalendarToken(domain.RoleMember, []string{"wg-1"}), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsVisible(tc.policy, tc.viewer))
		})
	}
}

type failingEvaluator struct{}

func (failingEvaluator) Visible(context.Context, Policy, Viewer) (bool, error) {
	return false, errors.New("engine down")
}

func TestFilter(t *testing.T) {
	type item struct {
		name   string
		policy Policy
	}
	items := []item{
		{"open", Policy{AllowedRoles: RolesForLevel(domain.RolePublic)}},
		{"members", Policy{AllowedRoles: RolesForLevel(domain.RoleMember)}},
		{"board", Policy{AllowedRoles: RolesForLevel(domain.RoleCommittee)}},
		{"ag", Policy{WorkingGroupID: "wg-1"}},
	}
	policyOf := func(i item) Policy { return i.policy }

	got, err := Filter(context.Background(), Native{}, ForMember(domain.RoleMember, []string{"wg-1"}), items, policyOf)
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, it := range got {
		names[i] = it.name
	}
	assert.Equal(t, []string{"open", "members", "ag"}, names)

	_, err = Filter(context.Background(), failingEvaluator{}, Anonymous(), items, policyOf)
	require.Error(t, err)
}
