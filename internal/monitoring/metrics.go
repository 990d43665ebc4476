package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_http_requests_total",
			Help: "Total number of page requests",
		},
		[]string{"route", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twotty_http_request_duration_seconds",
			Help:    "Duration of page requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	ActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "twotty_active_requests",
			Help: "Number of in-flight page requests",
		},
	)

	APICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_api_calls_total",
			Help: "Total number of backend API calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	APICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twotty_api_call_duration_seconds",
			Help:    "Duration of backend API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	GateRedirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_gate_redirects_total",
			Help: "Requests redirected by the auth gate",
		},
		[]string{"target"},
	)

	CredentialClearsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_credential_clears_total",
			Help: "Credentials deleted after a failed backend call",
		},
		[]string{"endpoint", "kind"},
	)

	ActivityPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_activity_published_total",
			Help: "Activity records handed to the broker by outcome",
		},
		[]string{"kind", "outcome"},
	)

	ActivityProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twotty_activity_processed_total",
			Help: "Activity records consumed by the worker by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to reg. It is safe to call more than once;
// only the first call registers.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			ActiveRequests,
			APICallsTotal,
			APICallDuration,
			GateRedirectsTotal,
			CredentialClearsTotal,
			ActivityPublishedTotal,
			ActivityProcessedTotal,
		)
	})
}

// ObserveAPICall records one backend call.
func ObserveAPICall(endpoint, outcome string, started time.Time) {
	APICallsTotal.WithLabelValues(endpoint, outcome).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
