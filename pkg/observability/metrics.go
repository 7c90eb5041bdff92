package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the broker
type Metrics struct {
	// Login metrics
	LoginAttemptsTotal *prometheus.CounterVec
	LoginDuration      *prometheus.HistogramVec

	// Upstream source metrics
	UpstreamCallsTotal   *prometheus.CounterVec
	UpstreamCallDuration *prometheus.HistogramVec
	UpstreamErrorsTotal  *prometheus.CounterVec

	// Broker metrics
	MemoHitsTotal       *prometheus.CounterVec
	RequiredDowngrades  *prometheus.CounterVec
	LogoutFailuresTotal *prometheus.CounterVec

	// Session metrics
	SessionsEstablishedTotal prometheus.Counter
	SessionsClearedTotal     prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_login_attempts_total",
				Help: "Total number of login attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		LoginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "centralauth_login_duration_seconds",
				Help:    "Login attempt duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		UpstreamCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_upstream_calls_total",
				Help: "Total number of upstream authentication calls",
			},
			[]string{"source"},
		),
		UpstreamCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "centralauth_upstream_call_duration_seconds",
				Help:    "Upstream authentication call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_upstream_errors_total",
				Help: "Total number of upstream calls that ended unavailable",
			},
			[]string{"source"},
		),
		MemoHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_memo_hits_total",
				Help: "Total number of authentication calls answered from the per-request memo",
			},
			[]string{"source"},
		),
		RequiredDowngrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_required_downgrades_total",
				Help: "Times a required source was downgraded because the upstream was unavailable",
			},
			[]string{"source"},
		),
		LogoutFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "centralauth_logout_failures_total",
				Help: "Total number of external logout calls that failed",
			},
			[]string{"source"},
		),
		SessionsEstablishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "centralauth_sessions_established_total",
				Help: "Total number of local sessions established",
			},
		),
		SessionsClearedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "centralauth_sessions_cleared_total",
				Help: "Total number of local sessions cleared",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.LoginAttemptsTotal,
		m.LoginDuration,
		m.UpstreamCallsTotal,
		m.UpstreamCallDuration,
		m.UpstreamErrorsTotal,
		m.MemoHitsTotal,
		m.RequiredDowngrades,
		m.LogoutFailuresTotal,
		m.SessionsEstablishedTotal,
		m.SessionsClearedTotal,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
