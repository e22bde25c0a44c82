package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reasoning_cache"

// Metrics holds the Prometheus counters and histograms for the reasoning service.
type Metrics struct {
	Requests        *prometheus.CounterVec // labels: outcome={hit,miss,validation_error,credential_error,inference_error,canceled}
	RequestDuration *prometheus.HistogramVec

	// Cache store metrics.
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss,error}
	CacheWriteFailures prometheus.Counter

	// Reasoning API metrics.
	InferenceRequests *prometheus.CounterVec // labels: outcome={success,transport,rejected,empty,timeout}
	InferenceDuration prometheus.Histogram
	CredentialFetches *prometheus.CounterVec // labels: outcome={success,error}

	AuditPublishFailures prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.CacheLookups,
		m.CacheWriteFailures,
		m.InferenceRequests,
		m.InferenceDuration,
		m.CredentialFetches,
		m.AuditPublishFailures,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Reasoning requests by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request handling duration by cache result.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"cached"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache store lookups by result.",
		}, []string{"result"}),
		CacheWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_failures_total",
			Help:      "Cache store writes that failed and were skipped.",
		}),
		InferenceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Reasoning API calls by outcome.",
		}, []string{"outcome"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Reasoning API call duration in seconds, retries included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 12, 16, 20, 25, 30},
		}),
		CredentialFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_fetches_total",
			Help:      "Credential store fetches by outcome.",
		}, []string{"outcome"}),
		AuditPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_failures_total",
			Help:      "Audit events that could not be published.",
		}),
	}
}
