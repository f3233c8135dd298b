package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/transport"
)

// TransportMetrics tracks the websocket event channel.
//
// Metrics:
//   - parley_client_transport_state: current state (0=disconnected, 1=connecting, 2=connected, 3=failed)
//   - parley_client_transport_reconnects_total: scheduled reconnection attempts
//   - parley_client_transport_reconnect_delay_seconds: delays before reconnecting
//   - parley_client_transport_events_total: events delivered by type
type TransportMetrics struct {
	state          prometheus.Gauge
	reconnects     prometheus.Counter
	reconnectDelay prometheus.Histogram
	events         *prometheus.CounterVec
}

// NewTransportMetrics creates and registers transport metrics.
func NewTransportMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TransportMetrics {
	tm := &TransportMetrics{
		state: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_state",
				Help:      "Transport state (0=disconnected, 1=connecting, 2=connected, 3=failed)",
			},
		),

		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_reconnects_total",
				Help:      "Total number of scheduled reconnection attempts",
			},
		),

		reconnectDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_reconnect_delay_seconds",
				Help:      "Delay before a reconnection attempt in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
			},
		),

		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transport_events_total",
				Help:      "Total number of events delivered to listeners",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(tm.state, tm.reconnects, tm.reconnectDelay, tm.events)

	return tm
}

// SetState records the current transport state.
func (tm *TransportMetrics) SetState(state transport.State) {
	tm.state.Set(float64(state))
}

// RecordReconnect counts a scheduled reconnect.
func (tm *TransportMetrics) RecordReconnect(delay time.Duration) {
	tm.reconnects.Inc()
	tm.reconnectDelay.Observe(delay.Seconds())
}

// RecordEvent counts a delivered event.
func (tm *TransportMetrics) RecordEvent(eventType string) {
	tm.events.WithLabelValues(eventType).Inc()
}
