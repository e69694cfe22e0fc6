package access

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pulsedeck/internal/logging"
	"pulsedeck/internal/membership/domain"
	orgservice "pulsedeck/internal/organization/service"
	"pulsedeck/internal/platform/rbac"
	"pulsedeck/internal/preference"
	"pulsedeck/internal/server/interceptors"
)

// Lookup values accepted by ListMemberships.
const (
	LookupBulk = "bulk"
	LookupJoin = "join"
)

const defaultDeviceID = "default"

// Repository is the read side of the membership store used by the server.
type Repository interface {
	ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error)
	GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error)
}

// MembershipResolver resolves all memberships of a user; it never fails.
type MembershipResolver interface {
	Resolve(ctx context.Context, userID string) []domain.Membership
}

// PreferenceFactory returns the stored organization preference of one user on one device.
type PreferenceFactory func(userID, deviceID string) preference.Store

// Server implements AccessServer.
type Server struct {
	repo     Repository
	resolver MembershipResolver
	prefs    PreferenceFactory
	log      logrus.FieldLogger
}

var _ AccessServer = (*Server)(nil)

// NewServer returns an access server. log may be nil.
func NewServer(repo Repository, resolver MembershipResolver, prefs PreferenceFactory, log logrus.FieldLogger) *Server {
	return &Server{repo: repo, resolver: resolver, prefs: prefs, log: logging.OrDiscard(log)}
}

// ListMemberships returns the caller's memberships. lookup "bulk" and "join" query the store
// directly and surface errors; an empty lookup goes through the resolver and never fails.
func (s *Server) ListMemberships(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	var list []domain.Membership
	switch lookup := req.GetFields()["lookup"].GetStringValue(); lookup {
	case "":
		list = s.resolver.Resolve(ctx, userID)
	case LookupBulk:
		list, err = s.repo.ListMembershipsByUser(ctx, userID)
	case LookupJoin:
		list, err = s.repo.ListMembershipsByUserJoin(ctx, userID)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown lookup %q", lookup)
	}
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("access: listing memberships failed")
		return nil, status.Error(codes.Internal, "failed to list memberships")
	}
	return newStruct(map[string]interface{}{"memberships": membershipsValue(list)})
}

// GetProfile returns the caller's profile in organization_id.
func (s *Server) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	orgID := req.GetFields()["organization_id"].GetStringValue()
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "organization_id is required")
	}
	p, err := s.repo.GetProfile(ctx, userID, orgID)
	if err != nil {
		s.log.WithError(err).WithField("org_id", orgID).Error("access: loading profile failed")
		return nil, status.Error(codes.Internal, "failed to load profile")
	}
	if p == nil {
		return nil, status.Error(codes.NotFound, "profile not found")
	}
	return newStruct(map[string]interface{}{"profile": profileValue(p)})
}

// ResolveContext resolves the caller's memberships and applies the selection policy for the
// calling device. A failed activation is reported as no active organization.
func (s *Server) ResolveContext(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	memberships := s.resolver.Resolve(ctx, userID)
	sel := orgservice.NewSelector(s.repo, s.prefs(userID, deviceID(ctx, req)), s.log)
	active, err := sel.Select(ctx, userID, memberships)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("access: activating organization failed")
		active = nil
	}
	return newStruct(map[string]interface{}{
		"memberships": membershipsValue(memberships),
		"active":      activeValue(active),
	})
}

// SelectOrganization activates organization_id for the caller and remembers it for the device.
func (s *Server) SelectOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	orgID := req.GetFields()["organization_id"].GetStringValue()
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "organization_id is required")
	}
	m := domain.FindByOrganization(s.resolver.Resolve(ctx, userID), orgID)
	if m == nil {
		return nil, status.Error(codes.PermissionDenied, "not a member of this organization")
	}
	sel := orgservice.NewSelector(s.repo, s.prefs(userID, deviceID(ctx, req)), s.log)
	active, err := sel.Activate(ctx, userID, *m)
	if err != nil {
		if errors.Is(err, orgservice.ErrActivationFailed) {
			return nil, status.Error(codes.Unavailable, "organization could not be activated")
		}
		return nil, status.Error(codes.Internal, "failed to activate organization")
	}
	return newStruct(map[string]interface{}{"active": activeValue(active)})
}

// SignOut forgets the stored organization preference of the calling device.
func (s *Server) SignOut(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.prefs(userID, deviceID(ctx, req)).Clear(ctx); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("access: clearing preference failed")
	}
	return &structpb.Struct{}, nil
}

// CheckCapability reports whether the caller holds capability in organization_id.
func (s *Server) CheckCapability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	capability := req.GetFields()["capability"].GetStringValue()
	if capability == "" {
		return nil, status.Error(codes.InvalidArgument, "capability is required")
	}
	ac, err := rbac.RequireOrgMember(ctx, s.repo, req.GetFields()["organization_id"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]interface{}{
		"allowed": rbac.NewEvaluator(ac).HasCapability(capability),
		"role":    ac.Role().String(),
	})
}

// CheckWorkingGroup reports the caller's standing in working_group_id.
func (s *Server) CheckWorkingGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	wgID := req.GetFields()["working_group_id"].GetStringValue()
	if wgID == "" {
		return nil, status.Error(codes.InvalidArgument, "working_group_id is required")
	}
	ac, err := rbac.RequireOrgMember(ctx, s.repo, req.GetFields()["organization_id"].GetStringValue())
	if err != nil {
		return nil, err
	}
	ev := rbac.NewEvaluator(ac)
	return newStruct(map[string]interface{}{
		"ag_member": ev.IsAgMember(wgID),
		"ag_admin":  ev.IsAgAdmin(wgID),
		"ag_lead":   ev.IsAgLead(wgID),
	})
}

func callerID(ctx context.Context) (string, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return "", status.Error(codes.Unauthenticated, "user context required")
	}
	return userID, nil
}

// deviceID prefers the x-device-id header over the request field.
func deviceID(ctx context.Context, req *structpb.Struct) string {
	if id, ok := interceptors.GetDeviceID(ctx); ok {
		return id
	}
	if id := req.GetFields()["device_id"].GetStringValue(); id != "" {
		return id
	}
	return defaultDeviceID
}
