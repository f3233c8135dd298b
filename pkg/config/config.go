package config

import "time"

// Config is the root configuration structure for parley.
// It contains the provider backends, the routing policy between them, the
// realtime transport, and telemetry settings.
type Config struct {
	// Providers contains configuration for every chat backend.
	// Keys are provider names ("googleai", "deepseek", "openai").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Routing selects the default and fallback providers and controls
	// automatic failover between them.
	Routing RoutingConfig `yaml:"routing"`

	// Transport configures the reconnecting websocket channel.
	Transport TransportConfig `yaml:"transport"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig contains configuration for a single chat backend.
type ProviderConfig struct {
	// BaseURL overrides the provider's API endpoint.
	// Default: the provider's public endpoint
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider.
	// Prefer the provider's environment variable (GOOGLE_API_KEY,
	// DEEPSEEK_API_KEY, OPENAI_API_KEY); it is read when the provider is
	// first used.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier.
	// Example: "gemini-2.0-flash"
	Model string `yaml:"model"`

	// Temperature is the default sampling temperature.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the length of a reply.
	MaxTokens int `yaml:"max_tokens"`

	// TopP is the default nucleus sampling parameter.
	TopP float64 `yaml:"top_p"`

	// MaxRetries is the number of local retries after an HTTP 429.
	// Default: 3
	MaxRetries *int `yaml:"max_retries"`

	// RetryDelay is the base delay of the retry schedule, doubled per retry.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Timeout bounds a whole request, or the wait for stream headers.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit holds advisory limits published by the provider.
	// They are shown to users and never enforced.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// StreamSimulation replays whole replies as paced chunks.
	// Only the googleai provider honours it.
	StreamSimulation StreamSimulationConfig `yaml:"stream_simulation"`
}

// RateLimitConfig contains advisory rate limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// StreamSimulationConfig controls simulated streaming.
type StreamSimulationConfig struct {
	// Enabled turns simulation on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ChunkSize is the number of runes per chunk.
	// Default: 20
	ChunkSize int `yaml:"chunk_size"`

	// Delay is the pause between chunks.
	// Default: 25ms
	Delay time.Duration `yaml:"delay"`
}

// RoutingConfig contains configuration for provider selection.
type RoutingConfig struct {
	// Default is the provider used at startup.
	// Default: "googleai"
	Default string `yaml:"default"`

	// Fallback is the provider failed over to on rate limiting.
	// Default: "deepseek"
	Fallback string `yaml:"fallback"`

	// FailoverEnabled controls automatic failover.
	// Default: true
	FailoverEnabled *bool `yaml:"failover_enabled"`
}

// TransportConfig contains configuration for the realtime websocket.
type TransportConfig struct {
	// URL is the websocket endpoint. Empty disables the transport.
	// Example: "ws://localhost:3001/ws"
	URL string `yaml:"url"`

	// MaxReconnectAttempts is the number of reconnects before giving up.
	// Default: 5
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// BaseDelay is the base of the reconnect backoff.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the reconnect backoff.
	// Default: 10s
	MaxDelay time.Duration `yaml:"max_delay"`

	// PingInterval is the keepalive period. Negative disables pings.
	// Default: 30s
	PingInterval time.Duration `yaml:"ping_interval"`

	// HandshakeTimeout bounds the websocket handshake.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "console"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables redaction of API keys and bearer tokens in logs.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Address is the listen address of the metrics endpoint.
	// Empty keeps metrics in-process only.
	Address string `yaml:"address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "parley"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "client"
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets defines histogram buckets for provider latency (seconds).
	// Default: [0.1, 0.25, 0.5, 1, 2, 5, 10, 30]
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether chat calls are traced.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service name in traces.
	// Default: "parley"
	ServiceName string `yaml:"service_name"`
}
