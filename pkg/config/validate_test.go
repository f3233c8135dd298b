package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.Providers["claude"] = ProviderConfig{Model: "x"} },
			field:  "providers.claude",
		},
		{
			name: "empty model",
			mutate: func(c *Config) {
				pc := c.Providers["openai"]
				pc.Model = ""
				c.Providers["openai"] = pc
			},
			field: "providers.openai.model",
		},
		{
			name: "bad base url",
			mutate: func(c *Config) {
				pc := c.Providers["deepseek"]
				pc.BaseURL = "not a url"
				c.Providers["deepseek"] = pc
			},
			field: "providers.deepseek.base_url",
		},
		{
			name: "temperature out of range",
			mutate: func(c *Config) {
				pc := c.Providers["googleai"]
				pc.Temperature = ptr(3.0)
				c.Providers["googleai"] = pc
			},
			field: "providers.googleai.temperature",
		},
		{
			name: "negative retries",
			mutate: func(c *Config) {
				pc := c.Providers["googleai"]
				pc.MaxRetries = ptr(-1)
				c.Providers["googleai"] = pc
			},
			field: "providers.googleai.max_retries",
		},
		{
			name: "too many retries",
			mutate: func(c *Config) {
				pc := c.Providers["deepseek"]
				pc.MaxRetries = ptr(MaxProviderRetries + 1)
				c.Providers["deepseek"] = pc
			},
			field: "providers.deepseek.max_retries",
		},
		{
			name:   "unconfigured fallback",
			mutate: func(c *Config) { c.Routing.Fallback = "mistral" },
			field:  "routing.fallback",
		},
		{
			name:   "http transport url",
			mutate: func(c *Config) { c.Transport.URL = "http://localhost:3001" },
			field:  "transport.url",
		},
		{
			name:   "max delay below base",
			mutate: func(c *Config) { c.Transport.MaxDelay = 500 * time.Millisecond },
			field:  "transport.max_delay",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			field:  "telemetry.logging.level",
		},
		{
			name: "bad redact pattern",
			mutate: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "broken", Pattern: "("}}
			},
			field: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name: "metrics path",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = "metrics"
			},
			field: "telemetry.metrics.path",
		},
		{
			name: "tracing sampler",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
			field: "telemetry.tracing.sampler",
		},
		{
			name: "tracing ratio",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			field: "telemetry.tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_MissingAPIKeyIsNotAnError(t *testing.T) {
	cfg := Default()
	for name, pc := range cfg.Providers {
		pc.APIKey = ""
		cfg.Providers[name] = pc
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected missing keys to be accepted, got %v", err)
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "routing.default", Message: "bad"}}}
	if single.Error() != "configuration validation failed: routing.default: bad" {
		t.Errorf("unexpected single error: %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "x"},
		{Field: "b", Message: "y"},
	}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "  - b: y") {
		t.Errorf("unexpected multi error: %q", multi.Error())
	}
}
