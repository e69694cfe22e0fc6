package interceptors

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"pulsedeck/internal/logging"
	"pulsedeck/internal/telemetry/metrics"
)

// TelemetryUnary returns a unary server interceptor that logs each RPC and records its
// status code and duration. m may be nil. skipMethods is the set of full method names
// to not record (e.g. the health check).
func TelemetryUnary(log logrus.FieldLogger, m *metrics.Metrics, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	log = logging.OrDiscard(log)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		elapsed := time.Since(start)
		m.ObserveRPC(info.FullMethod, code.String(), elapsed)

		userID, _ := GetUserID(ctx)
		entry := log.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": elapsed.Milliseconds(),
			"client_ip":   ClientIP(ctx),
			"user_id":     userID,
		})
		if err != nil {
			entry.WithError(err).Info("grpc: request failed")
		} else {
			entry.Debug("grpc: request")
		}
		return resp, err
	}
}
