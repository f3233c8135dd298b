package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration made only of default values.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PARLEY_SECTION_FIELD (e.g., PARLEY_ROUTING_DEFAULT).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Load is the entry point used by the CLI. It loads .env files into the
// process environment, then the configuration at path with environment
// overrides. A missing file at path is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	if optional && path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	return LoadConfigWithEnvOverrides(path)
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load environment files %v: %w", existing, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format PARLEY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Routing overrides
	if val := os.Getenv("PARLEY_ROUTING_DEFAULT"); val != "" {
		cfg.Routing.Default = val
	}
	if val := os.Getenv("PARLEY_ROUTING_FALLBACK"); val != "" {
		cfg.Routing.Fallback = val
	}
	if val := os.Getenv("PARLEY_ROUTING_FAILOVER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routing.FailoverEnabled = &b
		}
	}

	// Transport overrides
	if val := os.Getenv("PARLEY_TRANSPORT_URL"); val != "" {
		cfg.Transport.URL = val
	}
	if val := os.Getenv("PARLEY_TRANSPORT_MAX_RECONNECT_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Transport.MaxReconnectAttempts = i
		}
	}
	if val := os.Getenv("PARLEY_TRANSPORT_BASE_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Transport.BaseDelay = d
		}
	}
	if val := os.Getenv("PARLEY_TRANSPORT_MAX_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Transport.MaxDelay = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("PARLEY_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("PARLEY_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("PARLEY_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("PARLEY_TELEMETRY_METRICS_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.Address = val
	}
	if val := os.Getenv("PARLEY_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("PARLEY_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}

	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}
}

// applyProviderEnvOverrides applies environment variable overrides for a specific provider.
// Provider environment variables follow the format PARLEY_PROVIDERS_<NAME>_<FIELD>
// where NAME is the uppercase provider name.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider := cfg.Providers[providerName]

	prefix := fmt.Sprintf("PARLEY_PROVIDERS_%s_", strings.ToUpper(providerName))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		provider.APIKey = val
	}
	if val := os.Getenv(prefix + "MODEL"); val != "" {
		provider.Model = val
	}
	if val := os.Getenv(prefix + "TEMPERATURE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			provider.Temperature = &f
		}
	}
	if val := os.Getenv(prefix + "MAX_TOKENS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.MaxTokens = i
		}
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
		}
	}
	if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.MaxRetries = &i
		}
	}
	if val := os.Getenv(prefix + "RETRY_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.RetryDelay = d
		}
	}
	if val := os.Getenv(prefix + "STREAM_SIMULATION"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			provider.StreamSimulation.Enabled = b
		}
	}

	cfg.Providers[providerName] = provider
}
