package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the API. All Observe methods are nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	RPCsTotal          *prometheus.CounterVec
	RPCDuration        *prometheus.HistogramVec
	ResolutionsTotal   *prometheus.CounterVec
	CalendarExports    *prometheus.CounterVec
	CalendarCacheTotal *prometheus.CounterVec
	VisibilityFallback prometheus.Counter
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		RPCsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsedeck_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method", "code"},
		),
		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsedeck_grpc_request_duration_seconds",
				Help:    "gRPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsedeck_membership_resolutions_total",
				Help: "Membership resolutions by outcome",
			},
			[]string{"outcome"},
		),
		CalendarExports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsedeck_calendar_exports_total",
				Help: "Calendar export requests by credential kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		CalendarCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsedeck_calendar_cache_total",
				Help: "Calendar feed cache lookups by result",
			},
			[]string{"result"},
		),
		VisibilityFallback: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulsedeck_visibility_fallback_total",
				Help: "Policy engine evaluations that fell back to the native rule",
			},
		),
	}
	registry.MustRegister(
		m.RPCsTotal,
		m.RPCDuration,
		m.ResolutionsTotal,
		m.CalendarExports,
		m.CalendarCacheTotal,
		m.VisibilityFallback,
	)
	return m
}

// ObserveRPC records one finished RPC.
func (m *Metrics) ObserveRPC(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCsTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveResolution counts one membership resolution outcome (bulk, fallback, failed, skipped).
func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExport counts one calendar export.
func (m *Metrics) ObserveExport(kind, outcome string) {
	if m == nil {
		return
	}
	m.CalendarExports.WithLabelValues(kind, outcome).Inc()
}

// ObserveCache counts a feed cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CalendarCacheTotal.WithLabelValues(result).Inc()
}

// ObserveFallback counts one policy engine fallback.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.VisibilityFallback.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
