package interceptors

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"pulsedeck/internal/audit"
)

type auditMetadata struct {
	Method string `json:"method"`
}

// AuditUnary returns a unary server interceptor that records an audit event after each successful
// call to one of the audited methods. The organization is read from the request's organization_id
// field; the device from the x-device-id header, falling back to the request's device_id field.
// Unauthenticated calls are not recorded.
func AuditUnary(logger audit.AuditLogger, audited map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil || logger == nil || !audited[info.FullMethod] {
			return resp, err
		}
		userID, ok := GetUserID(ctx)
		if !ok {
			return resp, err
		}
		deviceID, _ := GetDeviceID(ctx)
		if deviceID == "" {
			deviceID = requestField(req, "device_id")
		}
		sessionID, _ := GetSessionID(ctx)
		meta, _ := json.Marshal(auditMetadata{Method: info.FullMethod})
		ar := audit.ParseFullMethod(info.FullMethod)
		logger.LogEvent(ctx, audit.Event{
			OrganizationID: requestField(req, "organization_id"),
			UserID:         userID,
			DeviceID:       deviceID,
			SessionID:      sessionID,
			Action:         ar.Action,
			Resource:       ar.Resource,
			Metadata:       string(meta),
		})
		return resp, err
	}
}

func requestField(req interface{}, name string) string {
	s, ok := req.(*structpb.Struct)
	if !ok || s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
