package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/routing"
	"mercator-hq/parley/pkg/transport"
)

// otherModel replaces model labels once the cardinality limit is reached.
const otherModel = "other"

// Collector owns every Prometheus metric of the client. It implements
// providers.Observer and transport.Observer, and ObserveSwitch can be
// registered with routing.Orchestrator.OnSwitch.
//
// When the configuration has metrics disabled every method is a no-op, so
// callers can wire the collector unconditionally.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	providerMetrics  *ProviderMetrics
	routingMetrics   *RoutingMetrics
	transportMetrics *TransportMetrics

	cardinalityLimiter *CardinalityLimiter
}

var (
	_ providers.Observer = (*Collector)(nil)
	_ transport.Observer = (*Collector)(nil)
)

// NewCollector creates a collector registering its metrics with registry.
// A nil registry gets a fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch.OnSwitch(collector.ObserveSwitch)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = config.DefaultLatencyBuckets
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(100),
	}

	c.providerMetrics = NewProviderMetrics(cfg, registry)
	c.routingMetrics = NewRoutingMetrics(cfg, registry)
	c.transportMetrics = NewTransportMetrics(cfg, registry)

	return c
}

// ObserveRequest records one upstream attempt.
func (c *Collector) ObserveRequest(provider providers.Name, model string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(string(provider) + ":" + model) {
		model = otherModel
	}

	c.providerMetrics.RecordRequest(string(provider), model, err, duration)
}

// ObserveRetry records a rate-limit retry and its backoff delay.
func (c *Collector) ObserveRetry(provider providers.Name, attempt int, delay time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.RecordRetry(string(provider), delay)
}

// ObserveStreamChunk counts a chunk delivered to a caller.
func (c *Collector) ObserveStreamChunk(provider providers.Name) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.RecordStreamChunk(string(provider))
}

// UpdateProviderHealth sets the health gauge of a provider.
func (c *Collector) UpdateProviderHealth(provider providers.Name, healthy bool) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.UpdateHealth(string(provider), healthy)
}

// SetActiveProvider marks name as the active provider.
func (c *Collector) SetActiveProvider(name providers.Name) {
	if !c.config.Enabled {
		return
	}

	c.routingMetrics.SetActive(string(name))
}

// ObserveSwitch records an active-provider change.
func (c *Collector) ObserveSwitch(event routing.SwitchEvent) {
	if !c.config.Enabled {
		return
	}

	c.routingMetrics.RecordSwitch(string(event.From), string(event.To), string(event.Reason))
}

// ObserveState records a transport state transition.
func (c *Collector) ObserveState(state transport.State) {
	if !c.config.Enabled {
		return
	}

	c.transportMetrics.SetState(state)
}

// ObserveReconnect records a scheduled reconnection attempt.
func (c *Collector) ObserveReconnect(attempt int, delay time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.transportMetrics.RecordReconnect(delay)
}

// ObserveEvent counts an event delivered to transport listeners.
func (c *Collector) ObserveEvent(eventType string) {
	if !c.config.Enabled {
		return
	}

	c.transportMetrics.RecordEvent(eventType)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct label sets a metric may
// grow to.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting maxCardinality label sets.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
