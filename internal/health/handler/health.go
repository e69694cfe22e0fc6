// Package handler reports readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pulsedeck/internal/logging"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA visibility evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc is a named dependency check.
type CheckFunc func(ctx context.Context) error

// Server aggregates dependency checks. A nil dependency is skipped.
type Server struct {
	checks  map[string]CheckFunc
	order   []string
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewServer returns a health server checking the database and the policy engine.
func NewServer(db Pinger, policy PolicyChecker) *Server {
	s := &Server{checks: make(map[string]CheckFunc), timeout: 2 * time.Second, log: logging.Discard()}
	if db != nil {
		s.Add("database", db.PingContext)
	}
	if policy != nil {
		s.Add("policy", policy.HealthCheck)
	}
	return s
}

// WithLogger sets the logger used for failed checks.
func (s *Server) WithLogger(log logrus.FieldLogger) *Server {
	s.log = logging.OrDiscard(log)
	return s
}

// Add registers an extra check, e.g. the preference store.
func (s *Server) Add(name string, fn CheckFunc) {
	if fn == nil {
		return
	}
	if _, ok := s.checks[name]; !ok {
		s.order = append(s.order, name)
	}
	s.checks[name] = fn
}

// Check runs every check and returns the failures by name. An empty map means healthy.
func (s *Server) Check(ctx context.Context) map[string]string {
	failed := make(map[string]string)
	for _, name := range s.order {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			s.log.WithError(err).WithField("check", name).Warn("health: check failed")
			failed[name] = err.Error()
		}
	}
	return failed
}

type healthResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// ServeHTTP answers 200 when all checks pass and 503 otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	failed := s.Check(r.Context())
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = healthResponse{Status: "unavailable", Failed: failed}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Refresh runs the checks once and publishes the result for the overall server and for each
// of services on hs.
func (s *Server) Refresh(ctx context.Context, hs *health.Server, services ...string) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if len(s.Check(ctx)) > 0 {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	for _, svc := range services {
		hs.SetServingStatus(svc, st)
	}
	return st
}

// Watch calls Refresh every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, hs *health.Server, interval time.Duration, services ...string) {
	s.Refresh(ctx, hs, services...)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh(ctx, hs, services...)
		}
	}
}

// PingFunc adapts a client whose ping reports failure through an error, such as a redis status command.
func PingFunc(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}
}
