// Package server assembles the gRPC and HTTP servers from the service handlers.
package server

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pulsedeck/internal/access"
	"pulsedeck/internal/audit"
	"pulsedeck/internal/security"
	"pulsedeck/internal/server/interceptors"
	"pulsedeck/internal/telemetry/metrics"
)

// healthCheckMethod is served without a token and kept out of RPC metrics.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds the gRPC handlers and their cross-cutting dependencies.
type Deps struct {
	// Access serves AccessService. If nil, the service is not registered.
	Access access.AccessServer
	// Health is the standard gRPC health server; its status is refreshed by the health handler.
	Health *health.Server
	// Tokens validates Bearer access tokens.
	Tokens *security.TokenProvider
	// Audit records organization selection and sign-out. If nil, nothing is audited.
	Audit audit.AuditLogger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
}

// PublicMethods returns the methods that do not require a Bearer token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		healthCheckMethod:              true,
		"/grpc.health.v1.Health/Watch": true,
		"/grpc.health.v1.Health/List":  true,
	}
}

// AuditedMethods returns the methods recorded in the audit log.
func AuditedMethods() map[string]bool {
	return map[string]bool{
		access.MethodSelectOrganization: true,
		access.MethodSignOut:            true,
	}
}

// NewGRPCServer returns a server with the interceptor chain telemetry, auth, audit and the OTel
// stats handler, and with all services registered.
func NewGRPCServer(deps Deps) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(deps.Log, deps.Metrics, map[string]bool{healthCheckMethod: true}),
			interceptors.AuthUnary(deps.Tokens, PublicMethods()),
			interceptors.AuditUnary(deps.Audit, AuditedMethods()),
		),
	)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given server.
//
//   - pulsedeck.access.v1.AccessService → internal/access
//   - grpc.health.v1.Health             → google.golang.org/grpc/health
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	if deps.Access != nil {
		access.RegisterAccessServer(s, deps.Access)
	}
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}
