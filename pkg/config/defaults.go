package config

import (
	"time"

	"mercator-hq/parley/pkg/providers"
)

// Default values for configuration fields.
const (
	// Provider defaults shared by every backend
	DefaultProviderMaxRetries = 3
	MaxProviderRetries        = 10
	DefaultProviderRetryDelay = 1 * time.Second

	// Stream simulation defaults
	DefaultStreamChunkSize = 20
	DefaultStreamDelay     = 25 * time.Millisecond

	// Routing defaults
	DefaultRoutingProvider = "googleai"
	DefaultRoutingFallback = "deepseek"
	DefaultFailoverEnabled = true

	// Transport defaults
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "console"
	DefaultLoggingRedactPII = true
	DefaultPrometheusPath   = "/metrics"
	DefaultMetricsNamespace = "parley"
	DefaultMetricsSubsystem = "client"
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 1.0
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultServiceName      = "parley"
)

// providerDefaults holds per-backend defaults.
var providerDefaults = map[string]ProviderConfig{
	"googleai": {
		Model:       "gemini-2.0-flash",
		Temperature: ptr(0.5),
		MaxTokens:   4096,
		TopP:        0.95,
		Timeout:     15 * time.Second,
		RateLimit:   RateLimitConfig{RequestsPerMinute: 15, RequestsPerDay: 1500},
	},
	"deepseek": {
		Model:       "deepseek-chat",
		Temperature: ptr(0.7),
		MaxTokens:   2048,
		TopP:        0.9,
		Timeout:     30 * time.Second,
		RateLimit:   RateLimitConfig{RequestsPerMinute: 10, RequestsPerDay: 1000},
	},
	"openai": {
		Model:       "gpt-3.5-turbo",
		Temperature: ptr(0.7),
		MaxTokens:   2048,
		TopP:        1.0,
		Timeout:     30 * time.Second,
	},
}

// DefaultLatencyBuckets are the provider latency histogram buckets (seconds).
var DefaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values, and adds an entry
// for every known provider so that each can be selected at runtime.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for _, name := range providers.KnownNames {
		key := string(name)
		pc := cfg.Providers[key]
		applyProviderDefaults(&pc, providerDefaults[key])
		cfg.Providers[key] = pc
	}

	// Routing defaults
	if cfg.Routing.Default == "" {
		cfg.Routing.Default = DefaultRoutingProvider
	}
	if cfg.Routing.Fallback == "" {
		cfg.Routing.Fallback = DefaultRoutingFallback
	}
	if cfg.Routing.FailoverEnabled == nil {
		cfg.Routing.FailoverEnabled = ptr(DefaultFailoverEnabled)
	}

	// Transport defaults
	if cfg.Transport.MaxReconnectAttempts == 0 {
		cfg.Transport.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.Transport.BaseDelay == 0 {
		cfg.Transport.BaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.Transport.MaxDelay == 0 {
		cfg.Transport.MaxDelay = DefaultReconnectMaxDelay
	}
	if cfg.Transport.PingInterval == 0 {
		cfg.Transport.PingInterval = DefaultPingInterval
	}
	if cfg.Transport.HandshakeTimeout == 0 {
		cfg.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.RedactPII == nil {
		cfg.Telemetry.Logging.RedactPII = ptr(DefaultLoggingRedactPII)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = DefaultLatencyBuckets
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}

func applyProviderDefaults(pc *ProviderConfig, def ProviderConfig) {
	if pc.Model == "" {
		pc.Model = def.Model
	}
	if pc.Temperature == nil && def.Temperature != nil {
		pc.Temperature = ptr(*def.Temperature)
	}
	if pc.MaxTokens == 0 {
		pc.MaxTokens = def.MaxTokens
	}
	if pc.TopP == 0 {
		pc.TopP = def.TopP
	}
	if pc.MaxRetries == nil {
		pc.MaxRetries = ptr(DefaultProviderMaxRetries)
	}
	if pc.RetryDelay == 0 {
		pc.RetryDelay = DefaultProviderRetryDelay
	}
	if pc.Timeout == 0 {
		pc.Timeout = def.Timeout
	}
	if pc.RateLimit == (RateLimitConfig{}) {
		pc.RateLimit = def.RateLimit
	}
	if pc.StreamSimulation.ChunkSize == 0 {
		pc.StreamSimulation.ChunkSize = DefaultStreamChunkSize
	}
	if pc.StreamSimulation.Delay == 0 {
		pc.StreamSimulation.Delay = DefaultStreamDelay
	}
}

func ptr[T any](v T) *T {
	return &v
}
