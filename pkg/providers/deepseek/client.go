package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/parley/pkg/providers"
)

const (
	// DefaultBaseURL is the DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "deepseek-chat"
)

// Provider implements providers.ChatProvider for the DeepSeek API.
type Provider struct {
	*providers.HTTPProvider
	baseURL string
}

// NewProvider creates a new DeepSeek provider adapter.
func NewProvider(config providers.ProviderConfig, observer providers.Observer) (*Provider, error) {
	if config.Name == "" {
		config.Name = providers.DeepSeek
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required (set DEEPSEEK_API_KEY)",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config, observer),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
	}

	slog.Debug("deepseek provider created",
		"provider", config.Name,
		"base_url", p.baseURL,
		"model", config.Model,
	)

	return p, nil
}

// Chat implements providers.ChatProvider.
func (p *Provider) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	req := transformRequest(p.Config(), content, history, opts, false)

	var resp chatResponse
	if err := p.DoJSONRequest(ctx, http.MethodPost, p.baseURL+"/chat/completions", req, &resp, p.headers()); err != nil {
		return "", err
	}

	reply, err := transformResponse(&resp)
	if err != nil {
		return "", providers.MalformedError(p.Name(), "", err)
	}
	return reply, nil
}

// ChatStream implements providers.ChatProvider.
func (p *Provider) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	req := transformRequest(p.Config(), content, history, opts, true)

	return providers.NewLazyStream(ctx, p.Name(), p.Observer(), func(ctx context.Context) (providers.ChunkSource, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		headers := p.headers()
		headers["Accept"] = "text/event-stream"

		resp, err := p.DoRequest(ctx, http.MethodPost, p.baseURL+"/chat/completions", body, headers)
		if err != nil {
			return nil, err
		}
		return providers.SSESource(p.Name(), resp.Body, decodeStreamChunk), nil
	})
}

// HealthCheck lists models, which verifies both reachability and the key.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.DoRequest(ctx, http.MethodGet, p.baseURL+"/models", nil, p.headers())
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.Config().APIKey,
	}
}
