package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
)

// ProviderMetrics tracks upstream traffic per provider.
//
// Metrics:
//   - parley_client_provider_requests_total: attempts by provider, model, status
//   - parley_client_provider_latency_seconds: attempt latency
//   - parley_client_provider_errors_total: failed attempts by error kind
//   - parley_client_provider_retries_total: rate-limit retries
//   - parley_client_provider_retry_delay_seconds: backoff delays slept
//   - parley_client_provider_stream_chunks_total: chunks delivered
//   - parley_client_provider_health: 1=healthy, 0=unhealthy
type ProviderMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	retries    *prometheus.CounterVec
	retryDelay *prometheus.HistogramVec
	chunks     *prometheus.CounterVec
	health     *prometheus.GaugeVec
}

// NewProviderMetrics creates and registers provider metrics.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_requests_total",
				Help:      "Total number of upstream attempts by status",
			},
			[]string{"provider", "model", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Upstream attempt latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"provider", "model"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Total number of failed upstream attempts by error kind",
			},
			[]string{"provider", "kind"},
		),

		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_retries_total",
				Help:      "Total number of rate-limit retries",
			},
			[]string{"provider"},
		),

		retryDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_retry_delay_seconds",
				Help:      "Backoff delay slept before a retry in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
			},
			[]string{"provider"},
		),

		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_stream_chunks_total",
				Help:      "Total number of stream chunks delivered",
			},
			[]string{"provider"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.requests,
		pm.latency,
		pm.errors,
		pm.retries,
		pm.retryDelay,
		pm.chunks,
		pm.health,
	)

	return pm
}

// RecordRequest records an attempt. Failed attempts are also counted by
// error kind; errors outside the taxonomy count as "unknown".
func (pm *ProviderMetrics) RecordRequest(provider, model string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		kind := string(providers.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		pm.errors.WithLabelValues(provider, kind).Inc()
	}

	pm.requests.WithLabelValues(provider, model, status).Inc()
	pm.latency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordRetry records a retry and the delay slept before it.
func (pm *ProviderMetrics) RecordRetry(provider string, delay time.Duration) {
	pm.retries.WithLabelValues(provider).Inc()
	pm.retryDelay.WithLabelValues(provider).Observe(delay.Seconds())
}

// RecordStreamChunk counts one delivered chunk.
func (pm *ProviderMetrics) RecordStreamChunk(provider string) {
	pm.chunks.WithLabelValues(provider).Inc()
}

// UpdateHealth sets the health gauge.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.health.WithLabelValues(provider).Set(value)
}
