package googleai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/parley/pkg/providers"
)

const (
	// DefaultBaseURL is the Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"

	defaultChunkSize = 20
)

// Provider implements providers.ChatProvider for Google's Gemini API.
type Provider struct {
	*providers.HTTPProvider
	baseURL string
}

// NewProvider creates a new Gemini provider adapter.
func NewProvider(config providers.ProviderConfig, observer providers.Observer) (*Provider, error) {
	if config.Name == "" {
		config.Name = providers.GoogleAI
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required (set GOOGLE_API_KEY)",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.StreamSimulation.Enabled && config.StreamSimulation.ChunkSize <= 0 {
		config.StreamSimulation.ChunkSize = defaultChunkSize
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config, observer),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
	}

	slog.Debug("googleai provider created",
		"provider", config.Name,
		"model", config.Model,
		"stream_simulation", config.StreamSimulation.Enabled,
	)

	return p, nil
}

// Chat implements providers.ChatProvider.
func (p *Provider) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	req := transformRequest(p.Config(), content, history, opts)

	var resp generateResponse
	if err := p.DoJSONRequest(ctx, http.MethodPost, p.modelURL("generateContent"), req, &resp, p.headers()); err != nil {
		return "", classify(err)
	}

	reply, err := transformResponse(&resp)
	if err != nil {
		return "", providers.MalformedError(p.Name(), "", err)
	}
	return reply, nil
}

// ChatStream implements providers.ChatProvider. With stream simulation
// enabled the whole reply is fetched with generateContent and replayed in
// paced chunks.
func (p *Provider) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	sim := p.Config().StreamSimulation
	if sim.Enabled {
		return providers.NewLazyStream(ctx, p.Name(), p.Observer(), func(ctx context.Context) (providers.ChunkSource, error) {
			reply, err := p.Chat(ctx, content, history, opts)
			if err != nil {
				return nil, err
			}
			return providers.SimulatedSource(ctx, reply, sim.ChunkSize, sim.Delay), nil
		})
	}

	req := transformRequest(p.Config(), content, history, opts)

	return providers.NewLazyStream(ctx, p.Name(), p.Observer(), func(ctx context.Context) (providers.ChunkSource, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		headers := p.headers()
		headers["Accept"] = "text/event-stream"

		resp, err := p.DoRequest(ctx, http.MethodPost, p.modelURL("streamGenerateContent")+"?alt=sse", body, headers)
		if err != nil {
			return nil, classify(err)
		}
		return providers.SSESource(p.Name(), resp.Body, decodeStreamChunk), nil
	})
}

// HealthCheck fetches the configured model's metadata.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.DoRequest(ctx, http.MethodGet, p.baseURL+"/models/"+p.Config().Model, nil, p.headers())
	if err != nil {
		return classify(err)
	}
	return resp.Body.Close()
}

func (p *Provider) modelURL(method string) string {
	return fmt.Sprintf("%s/models/%s:%s", p.baseURL, p.Config().Model, method)
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-goog-api-key": p.Config().APIKey,
	}
}

// classify maps Gemini's 400 API_KEY_INVALID answer to an unauthorized
// error. Gemini reports bad keys with a plain 400 rather than a 401.
func classify(err error) error {
	var perr *providers.ProviderError
	if !errors.As(err, &perr) {
		return err
	}
	if perr.StatusCode == http.StatusBadRequest && strings.Contains(perr.Message, "API_KEY_INVALID") {
		out := *perr
		out.Kind = providers.KindUnauthorized
		return &out
	}
	return err
}
