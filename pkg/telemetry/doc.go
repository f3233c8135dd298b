// Package telemetry groups the observability packages of parley.
//
//   - logging: slog setup with credential redaction and context fields
//   - metrics: Prometheus collector for providers, routing and transport
//   - tracing: OpenTelemetry spans around provider calls
//   - health: concurrent provider health checks and HTTP probes
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig and wired together by the CLI.
package telemetry
