package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"mercator-hq/parley/pkg/providers"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "routing.default").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRouting(&cfg.Routing, cfg.Providers)...)
	errs = append(errs, validateTransport(&cfg.Transport)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateProviders validates provider configurations. API keys are not
// required here; a provider without one fails when first used.
func validateProviders(cfgs map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(cfgs) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
		return errs
	}

	for name, cfg := range cfgs {
		prefix := fmt.Sprintf("providers.%s", name)

		if _, err := providers.ParseName(name); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: err.Error(),
			})
			continue
		}

		if cfg.Model == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".model",
				Message: "model is required",
			})
		}

		if cfg.BaseURL != "" {
			if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".base_url",
					Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL),
				})
			}
		}

		if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 2) {
			errs = append(errs, FieldError{
				Field:   prefix + ".temperature",
				Message: "temperature must be between 0.0 and 2.0",
			})
		}
		if cfg.TopP < 0 || cfg.TopP > 1 {
			errs = append(errs, FieldError{
				Field:   prefix + ".top_p",
				Message: "top_p must be between 0.0 and 1.0",
			})
		}
		if cfg.MaxTokens < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_tokens",
				Message: "max tokens must be non-negative",
			})
		}
		if cfg.MaxRetries != nil && (*cfg.MaxRetries < 0 || *cfg.MaxRetries > MaxProviderRetries) {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: fmt.Sprintf("max retries must be between 0 and %d", MaxProviderRetries),
			})
		}
		if cfg.RetryDelay < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".retry_delay",
				Message: "retry delay must be positive",
			})
		}
		if cfg.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}
		if cfg.StreamSimulation.Enabled && cfg.StreamSimulation.ChunkSize <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".stream_simulation.chunk_size",
				Message: "chunk size must be positive when stream simulation is enabled",
			})
		}
	}

	return errs
}

// validateRouting validates that routing names refer to configured providers.
func validateRouting(cfg *RoutingConfig, cfgs map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	check := func(field, name string) {
		if name == "" {
			errs = append(errs, FieldError{Field: field, Message: "provider name is required"})
			return
		}
		if _, ok := cfgs[name]; !ok {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("provider %q is not configured", name),
			})
		}
	}
	check("routing.default", cfg.Default)
	check("routing.fallback", cfg.Fallback)

	return errs
}

// validateTransport validates websocket transport configuration.
func validateTransport(cfg *TransportConfig) []FieldError {
	var errs []FieldError

	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "transport.url",
				Message: fmt.Sprintf("invalid websocket URL %q: must use ws:// or wss://", cfg.URL),
			})
		}
	}

	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, FieldError{
			Field:   "transport.max_reconnect_attempts",
			Message: "max reconnect attempts must be non-negative",
		})
	}
	if cfg.BaseDelay <= 0 {
		errs = append(errs, FieldError{
			Field:   "transport.base_delay",
			Message: "base delay must be positive",
		})
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		errs = append(errs, FieldError{
			Field:   "transport.max_delay",
			Message: "max delay must not be less than base delay",
		})
	}
	if cfg.HandshakeTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "transport.handshake_timeout",
			Message: "handshake timeout must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}
