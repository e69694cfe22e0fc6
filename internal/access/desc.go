// Package access exposes memberships, profiles and the active-organization context over gRPC.
// Messages are google.protobuf.Struct values; the field names are listed on each method.
package access

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pulsedeck.access.v1.AccessService"

// Full method names.
const (
	MethodListMemberships    = "/" + ServiceName + "/ListMemberships"
	MethodGetProfile         = "/" + ServiceName + "/GetProfile"
	MethodResolveContext     = "/" + ServiceName + "/ResolveContext"
	MethodSelectOrganization = "/" + ServiceName + "/SelectOrganization"
	MethodSignOut            = "/" + ServiceName + "/SignOut"
	MethodCheckCapability    = "/" + ServiceName + "/CheckCapability"
	MethodCheckWorkingGroup  = "/" + ServiceName + "/CheckWorkingGroup"
)

// AccessServer is the server API of AccessService.
type AccessServer interface {
	// ListMemberships {lookup: "bulk"|"join"|""} -> {memberships}
	ListMemberships(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetProfile {organization_id} -> {profile}
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ResolveContext {device_id} -> {active, memberships}
	ResolveContext(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SelectOrganization {device_id, organization_id} -> {active}
	SelectOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SignOut {device_id} -> {}
	SignOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CheckCapability {organization_id, capability} -> {allowed, role}
	CheckCapability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CheckWorkingGroup {organization_id, working_group_id} -> {ag_member, ag_admin, ag_lead}
	CheckWorkingGroup(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AccessServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccessServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AccessServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes AccessService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListMemberships", Handler: unaryHandler(MethodListMemberships, AccessServer.ListMemberships)},
		{MethodName: "GetProfile", Handler: unaryHandler(MethodGetProfile, AccessServer.GetProfile)},
		{MethodName: "ResolveContext", Handler: unaryHandler(MethodResolveContext, AccessServer.ResolveContext)},
		{MethodName: "SelectOrganization", Handler: unaryHandler(MethodSelectOrganization, AccessServer.SelectOrganization)},
		{MethodName: "SignOut", Handler: unaryHandler(MethodSignOut, AccessServer.SignOut)},
		{MethodName: "CheckCapability", Handler: unaryHandler(MethodCheckCapability, AccessServer.CheckCapability)},
		{MethodName: "CheckWorkingGroup", Handler: unaryHandler(MethodCheckWorkingGroup, AccessServer.CheckWorkingGroup)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulsedeck/access/v1/access.proto",
}

// RegisterAccessServer registers srv on s.
func RegisterAccessServer(s grpc.ServiceRegistrar, srv AccessServer) {
	s.RegisterService(&ServiceDesc, srv)
}
