package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pulsedeck/internal/membership/domain"
	"pulsedeck/internal/server/interceptors"
)

// OrgProfileGetter returns a user's profile in an org. Used by the guards to resolve the caller's role.
type OrgProfileGetter interface {
	GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error)
}

// RequireOrgMember ensures the caller is authenticated and is a member of orgID (any role).
// Returns the caller's active context for orgID on success; returns a gRPC error
// (Unauthenticated, InvalidArgument, PermissionDenied or Internal) on failure.
func RequireOrgMember(ctx context.Context, getter OrgProfileGetter, orgID string) (*domain.ActiveContext, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user context required")
	}
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "organization_id is required")
	}
	p, err := getter.GetProfile(ctx, userID, orgID)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to resolve membership")
	}
	if p == nil {
		return nil, status.Error(codes.PermissionDenied, "not a member of this organization")
	}
	return &domain.ActiveContext{
		Membership: domain.Membership{
			MemberID:       p.ID,
			MemberName:     p.Name,
			OrganizationID: orgID,
			Role:           p.Role,
		},
		Profile: p,
	}, nil
}

// RequireCapability ensures the caller is a member of orgID and holds cap.
func RequireCapability(ctx context.Context, getter OrgProfileGetter, orgID, cap string) (*domain.ActiveContext, error) {
	ac, err := RequireOrgMember(ctx, getter, orgID)
	if err != nil {
		return nil, err
	}
	if !NewEvaluator(ac).HasCapability(cap) {
		return nil, status.Errorf(codes.PermissionDenied, "capability %q required", cap)
	}
	return ac, nil
}
