// Package metrics exposes Prometheus metrics for the chat client.
//
// A single Collector observes three components:
//
//   - provider adapters, through providers.Observer (attempts, latency,
//     error kinds, retries, stream chunks)
//   - the orchestrator, through ObserveSwitch registered with OnSwitch
//     (active provider, switches by reason)
//   - the websocket transport, through transport.Observer (state,
//     reconnects, delivered events)
//
// All metrics share the configured namespace and subsystem, so with the
// defaults they are named parley_client_*. Model labels pass through a
// cardinality limiter and collapse to "other" once it is full.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch.OnSwitch(collector.ObserveSwitch)
//	go collector.Serve(ctx, cfg.Telemetry.Metrics.Address)
package metrics
