// Package metrics provides Prometheus metrics for the clinic portal.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	FormSessionsActive prometheus.Gauge
	SubmissionsTotal   *prometheus.CounterVec
	ReferralsProcessed prometheus.Counter
	UpstreamFailures   prometheus.Counter
	BreakerState       *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route"}),
		FormSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_form_sessions_active",
			Help: "Currently open form sessions",
		}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_submissions_total",
			Help: "Form submissions by outcome",
		}, []string{"outcome"}),
		ReferralsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_referrals_processed_total",
			Help: "Total processed referrals",
		}),
		UpstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_upstream_failures_total",
			Help: "Failed calls to the patient record service",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.FormSessionsActive,
		m.SubmissionsTotal,
		m.ReferralsProcessed,
		m.UpstreamFailures,
		m.BreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
