package rbac

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pulsedeck/internal/membership/domain"
	"pulsedeck/internal/server/interceptors"
)

// mockProfileGetter implements OrgProfileGetter for tests.
type mockProfileGetter struct {
	profiles map[string]*domain.Profile
	err      error
}

func (m *mockProfileGetter) GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[userID+":"+orgID], nil
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != want {
		t.Errorf("status code = %v, want %v", st.Code(), want)
	}
}

func TestRequireOrgMember_Success_AnyRole(t *testing.T) {
	for _, role := range domain.AllRoles() {
		t.Run(role.String(), func(t *testing.T) {
			getter := &mockProfileGetter{profiles: map[string]*domain.Profile{
				"user-1:org-1": {ID: "m1", UserID: "user-1", OrganizationID: "org-1", Role: role},
			}}
			ctx := interceptors.WithIdentity(context.Background(), "user-1", "", "session-1")

			ac, err := RequireOrgMember(ctx, getter, "org-1")
			if err != nil {
				t.Fatalf("RequireOrgMember: %v", err)
			}
			if ac.OrganizationID() != "org-1" {
				t.Errorf("org_id = %q, want %q", ac.OrganizationID(), "org-1")
			}
			if ac.Role() != role {
				t.Errorf("role = %v, want %v", ac.Role(), role)
			}
		})
	}
}

func TestRequireOrgMember_Failure_NotMember(t *testing.T) {
	getter := &mockProfileGetter{profiles: map[string]*domain.Profile{}}
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "", "session-1")

	_, err := RequireOrgMember(ctx, getter, "org-1")
	assertCode(t, err, codes.PermissionDenied)
}

func TestRequireOrgMember_Failure_NoContext(t *testing.T) {
	_, err := RequireOrgMember(context.Background(), &mockProfileGetter{}, "org-1")
	assertCode(t, err, codes.Unauthenticated)
}

func TestRequireOrgMember_Failure_EmptyOrgID(t *testing.T) {
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "", "session-1")
	_, err := RequireOrgMember(ctx, &mockProfileGetter{}, "")
	assertCode(t, err, codes.InvalidArgument)
}

func TestRequireOrgMember_Failure_RepositoryError(t *testing.T) {
	getter := &mockProfileGetter{err: errors.New("database error")}
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "", "session-1")

	_, err := RequireOrgMember(ctx, getter, "org-1")
	assertCode(t, err, codes.Internal)
}

func TestRequireCapability(t *testing.T) {
	getter := &mockProfileGetter{profiles: map[string]*domain.Profile{
		"member-1:org-1":    {ID: "m1", Role: domain.RoleMember, Permissions: []string{CapEditWiki}},
		"committee-1:org-1": {ID: "m2", Role: domain.RoleCommittee},
		"public-1:org-1":    {ID: "m3", Role: domain.RolePublic, Permissions: []string{CapEditWiki}},
	}}
	testCases := []struct {
		user string
		cap  string
		want codes.Code
	}{
		{"member-1", CapEditWiki, codes.OK},
		{"member-1", CapManageEvents, codes.PermissionDenied},
		{"committee-1", CapManageEvents, codes.OK},
		{"public-1", CapEditWiki, codes.PermissionDenied},
	}
	for _, tc := range testCases {
		t.Run(tc.user+"/"+tc.cap, func(t *testing.T) {
			ctx := interceptors.WithIdentity(context.Background(), tc.user, "", "session-1")
			_, err := RequireCapability(ctx, getter, "org-1", tc.cap)
			if tc.want == codes.OK {
				if err != nil {
					t.Fatalf("RequireCapability: %v", err)
				}
				return
			}
			assertCode(t, err, tc.want)
		})
	}
}
