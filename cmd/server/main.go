// server runs the PulseDeck access API (gRPC) and the calendar, health and metrics endpoints (HTTP).
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"pulsedeck/internal/access"
	"pulsedeck/internal/audit"
	auditrepo "pulsedeck/internal/audit/repository"
	calendarhandler "pulsedeck/internal/calendar/handler"
	calendarrepo "pulsedeck/internal/calendar/repository"
	calendarservice "pulsedeck/internal/calendar/service"
	"pulsedeck/internal/config"
	"pulsedeck/internal/db"
	healthhandler "pulsedeck/internal/health/handler"
	"pulsedeck/internal/logging"
	membershiprepo "pulsedeck/internal/membership/repository"
	membershipservice "pulsedeck/internal/membership/service"
	orgrepo "pulsedeck/internal/organization/repository"
	"pulsedeck/internal/policy/engine"
	"pulsedeck/internal/preference"
	"pulsedeck/internal/security"
	"pulsedeck/internal/server"
	"pulsedeck/internal/server/interceptors"
	"pulsedeck/internal/telemetry/metrics"
	"pulsedeck/internal/telemetry/otel"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").WithError(err).Fatal("server: loading config failed")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server: exited")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	if providers.Exporting {
		log.AddHook(otel.NewLogHook(providers.LoggerProvider, log.GetLevel()))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	tokens, err := accessValidator(cfg)
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	prefs, redisClient, err := preferences(cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	evaluator, err := engine.NewVisibilityEvaluator(ctx, cfg.VisibilityEngine, log, m.ObserveFallback)
	if err != nil {
		return err
	}

	members := membershiprepo.NewPostgresRepository(conn)
	resolver := membershipservice.NewResolver(members, log).WithObserver(m.ObserveResolution)
	accessSrv := access.NewServer(members, resolver, prefs, log)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP, log)

	exporter := calendarservice.NewExporter(
		members,
		orgrepo.NewPostgresRepository(conn),
		calendarrepo.NewPostgresRepository(conn),
		evaluator,
		calendarservice.Config{Lookback: cfg.Lookback(), CacheTTL: cfg.CacheTTL(), CacheSize: cfg.ICalCacheSize},
		m,
		log,
	)

	var policyChecker healthhandler.PolicyChecker
	if pc, ok := evaluator.(healthhandler.PolicyChecker); ok {
		policyChecker = pc
	}
	checks := healthhandler.NewServer(conn, policyChecker).WithLogger(log)
	if redisClient != nil {
		checks.Add("preferences", healthhandler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	grpcHealth := health.NewServer()

	grpcSrv := server.NewGRPCServer(server.Deps{
		Access:  accessSrv,
		Health:  grpcHealth,
		Tokens:  tokens,
		Audit:   auditor,
		Metrics: m,
		Log:     log,
	})
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, server.NewRouter(server.HTTPDeps{
		Health:  checks,
		Metrics: m.Handler(),
		Routes:  []func(*mux.Router){calendarhandler.NewHandlers(exporter, log).RegisterRoutes},
	}))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.GRPCAddr).Info("server: gRPC listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("server: HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		checks.Watch(gctx, grpcHealth, healthInterval, access.ServiceName)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server: shutting down")
		grpcHealth.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("server: HTTP shutdown failed")
		}
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()
	log.Info("server: stopped")
	return err
}

// preferences returns the per-device preference factory: Redis when configured, else process memory.
func preferences(cfg *config.Config, log logrus.FieldLogger) (access.PreferenceFactory, *redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Warn("server: REDIS_URL not set, organization preferences are kept in memory")
		return preference.NewMemoryRegistry().For, nil, nil
	}
	client, err := preference.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	ttl := cfg.PrefTTL()
	return func(userID, deviceID string) preference.Store {
		return preference.NewRedisStore(client, preference.DeviceKey(userID, deviceID), ttl)
	}, client, nil
}

// accessValidator builds the validate-only token provider from the auth provider's public key.
func accessValidator(cfg *config.Config) (*security.TokenProvider, error) {
	tokens, err := security.NewTokenProviderFromPEM("", cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		return nil, fmt.Errorf("server: JWT_PUBLIC_KEY: %w", err)
	}
	return tokens, nil
}
