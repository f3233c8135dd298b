package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/parley/pkg/config"
)

// RoutingMetrics tracks which provider is active and how it changes.
//
// Metrics:
//   - parley_client_active_provider: 1 for the active provider, 0 otherwise
//   - parley_client_provider_switches_total: switches by from, to, reason
type RoutingMetrics struct {
	active   *prometheus.GaugeVec
	switches *prometheus.CounterVec

	mu      sync.Mutex
	current string
}

// NewRoutingMetrics creates and registers routing metrics.
func NewRoutingMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RoutingMetrics {
	rm := &RoutingMetrics{
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_provider",
				Help:      "Active provider (1=active, 0=inactive)",
			},
			[]string{"provider"},
		),

		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_switches_total",
				Help:      "Total number of active provider switches",
			},
			[]string{"from", "to", "reason"},
		),
	}

	registry.MustRegister(rm.active, rm.switches)

	return rm
}

// SetActive moves the active marker to provider.
func (rm *RoutingMetrics) SetActive(provider string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.current != "" && rm.current != provider {
		rm.active.WithLabelValues(rm.current).Set(0)
	}
	rm.active.WithLabelValues(provider).Set(1)
	rm.current = provider
}

// RecordSwitch counts a switch and moves the active marker.
func (rm *RoutingMetrics) RecordSwitch(from, to, reason string) {
	rm.switches.WithLabelValues(from, to, reason).Inc()
	rm.SetActive(to)
}
