package access

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pulsedeck/internal/membership/domain"
)

// Client calls AccessService. It satisfies the membership and profile read ports, so the
// resolver and selector can run against a remote server.
type Client struct {
	conn     grpc.ClientConnInterface
	token    string
	deviceID string
}

// NewClient returns a client that authenticates every call with token and deviceID.
func NewClient(conn grpc.ClientConnInterface, token, deviceID string) *Client {
	return &Client{conn: conn, token: token, deviceID: deviceID}
}

// Dial connects to addr without transport security. The caller closes the returned connection.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]interface{}) (map[string]interface{}, error) {
	in, err := newStruct(fields)
	if err != nil {
		return nil, err
	}
	pairs := make([]string, 0, 4)
	if c.token != "" {
		pairs = append(pairs, "authorization", "Bearer "+c.token)
	}
	if c.deviceID != "" {
		pairs = append(pairs, "x-device-id", c.deviceID)
	}
	if len(pairs) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// ListMembershipsByUser runs the bulk lookup for the token holder. userID is ignored;
// the server always answers for the authenticated caller.
func (c *Client) ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	return c.listMemberships(ctx, LookupBulk)
}

// ListMembershipsByUserJoin runs the join lookup for the token holder.
func (c *Client) ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error) {
	return c.listMemberships(ctx, LookupJoin)
}

func (c *Client) listMemberships(ctx context.Context, lookup string) ([]domain.Membership, error) {
	out, err := c.invoke(ctx, MethodListMemberships, map[string]interface{}{"lookup": lookup})
	if err != nil {
		return nil, err
	}
	return membershipsFromValue(out["memberships"]), nil
}

// GetProfile returns the caller's profile in orgID, or (nil, nil) if the caller is not a member.
func (c *Client) GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error) {
	out, err := c.invoke(ctx, MethodGetProfile, map[string]interface{}{"organization_id": orgID})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return profileFromValue(out["profile"]), nil
}

// ResolveContext returns the caller's memberships and the organization the server activated, if any.
func (c *Client) ResolveContext(ctx context.Context) ([]domain.Membership, *domain.ActiveContext, error) {
	out, err := c.invoke(ctx, MethodResolveContext, map[string]interface{}{"device_id": c.deviceID})
	if err != nil {
		return nil, nil, err
	}
	return membershipsFromValue(out["memberships"]), activeFromValue(out["active"]), nil
}

// SelectOrganization activates orgID on the server for this device.
func (c *Client) SelectOrganization(ctx context.Context, orgID string) (*domain.ActiveContext, error) {
	out, err := c.invoke(ctx, MethodSelectOrganization, map[string]interface{}{
		"organization_id": orgID,
		"device_id":       c.deviceID,
	})
	if err != nil {
		return nil, err
	}
	return activeFromValue(out["active"]), nil
}

// SignOut clears the server-side preference of this device.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.invoke(ctx, MethodSignOut, map[string]interface{}{"device_id": c.deviceID})
	return err
}

// CheckCapability asks whether the caller holds capability in orgID and returns the caller's role.
func (c *Client) CheckCapability(ctx context.Context, orgID, capability string) (bool, domain.Role, error) {
	out, err := c.invoke(ctx, MethodCheckCapability, map[string]interface{}{
		"organization_id": orgID,
		"capability":      capability,
	})
	if err != nil {
		return false, domain.RolePublic, err
	}
	return boolField(out, "allowed"), domain.ParseRole(stringField(out, "role")), nil
}

// WorkingGroupStanding is the caller's standing in one working group.
type WorkingGroupStanding struct {
	Member bool
	Admin  bool
	Lead   bool
}

// CheckWorkingGroup returns the caller's standing in wgID of orgID.
func (c *Client) CheckWorkingGroup(ctx context.Context, orgID, wgID string) (WorkingGroupStanding, error) {
	out, err := c.invoke(ctx, MethodCheckWorkingGroup, map[string]interface{}{
		"organization_id":  orgID,
		"working_group_id": wgID,
	})
	if err != nil {
		return WorkingGroupStanding{}, err
	}
	return WorkingGroupStanding{
		Member: boolField(out, "ag_member"),
		Admin:  boolField(out, "ag_admin"),
		Lead:   boolField(out, "ag_lead"),
	}, nil
}
