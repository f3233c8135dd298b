package config

import (
	"os"
	"time"

	"mercator-hq/parley/pkg/providers"
)

// apiKeyEnv lists the conventional credential variables per provider, in
// lookup order.
var apiKeyEnv = map[providers.Name][]string{
	providers.GoogleAI: {"GOOGLE_API_KEY", "GOOGLE_AI_API_KEY", "GEMINI_API_KEY"},
	providers.DeepSeek: {"DEEPSEEK_API_KEY"},
	providers.OpenAI:   {"OPENAI_API_KEY"},
}

// APIKeyEnv returns the environment variables consulted for name's API key.
func APIKeyEnv(name providers.Name) []string {
	return apiKeyEnv[name]
}

// Provider resolves the runtime settings of the named provider. An API key
// absent from the file is read from the provider's environment variable at
// call time, so credentials exported after startup are picked up.
func (c *Config) Provider(name providers.Name) (providers.ProviderConfig, error) {
	pc, ok := c.Providers[string(name)]
	if !ok {
		return providers.ProviderConfig{}, &providers.ConfigError{
			Provider: name,
			Field:    "providers",
			Message:  "provider is not configured",
		}
	}

	apiKey := pc.APIKey
	for _, env := range apiKeyEnv[name] {
		if apiKey != "" {
			break
		}
		apiKey = os.Getenv(env)
	}

	out := providers.ProviderConfig{
		Name:       name,
		BaseURL:    pc.BaseURL,
		APIKey:     apiKey,
		Model:      pc.Model,
		MaxTokens:  pc.MaxTokens,
		TopP:       pc.TopP,
		RetryDelay: pc.RetryDelay,
		Timeout:    pc.Timeout,
		RateLimit: providers.RateLimitHints{
			RequestsPerMinute: pc.RateLimit.RequestsPerMinute,
			RequestsPerDay:    pc.RateLimit.RequestsPerDay,
		},
		StreamSimulation: providers.StreamSimulation{
			Enabled:   pc.StreamSimulation.Enabled,
			ChunkSize: pc.StreamSimulation.ChunkSize,
			Delay:     pc.StreamSimulation.Delay,
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	if pc.Temperature != nil {
		out.Temperature = *pc.Temperature
	}
	if pc.MaxRetries != nil {
		out.MaxRetries = *pc.MaxRetries
	}

	return out, nil
}

// Failover reports the effective failover setting.
func (r RoutingConfig) Failover() bool {
	return r.FailoverEnabled == nil || *r.FailoverEnabled
}
