package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"mercator-hq/parley/pkg/providers"
)

const (
	// DefaultBaseURL is the OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = goopenai.GPT3Dot5Turbo
)

// Provider implements providers.ChatProvider on top of the go-openai SDK.
// The embedded HTTPProvider contributes the pooled client, the observer and
// health tracking; the SDK handles the wire format.
type Provider struct {
	*providers.HTTPProvider
	client *goopenai.Client
}

// NewProvider creates a new OpenAI provider adapter.
func NewProvider(config providers.ProviderConfig, observer providers.Observer) (*Provider, error) {
	if config.Name == "" {
		config.Name = providers.OpenAI
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required (set OPENAI_API_KEY)",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	base := providers.NewHTTPProvider(config, observer)

	sdkConfig := goopenai.DefaultConfig(config.APIKey)
	sdkConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	sdkConfig.HTTPClient = base.HTTPClient()

	slog.Debug("openai provider created",
		"provider", config.Name,
		"base_url", sdkConfig.BaseURL,
		"model", config.Model,
	)

	return &Provider{
		HTTPProvider: base,
		client:       goopenai.NewClientWithConfig(sdkConfig),
	}, nil
}

// Chat implements providers.ChatProvider.
func (p *Provider) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	req := p.buildRequest(content, history, opts)

	resp, err := providers.RetryRateLimited(ctx, p.Config(), p.Observer(), func() (goopenai.ChatCompletionResponse, error) {
		start := time.Now()
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			err = mapError(ctx, p.Name(), err)
		}
		p.RecordRequest(start, err)
		return resp, err
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", providers.MalformedError(p.Name(), "", errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements providers.ChatProvider.
func (p *Provider) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	req := p.buildRequest(content, history, opts)
	req.Stream = true

	return providers.NewLazyStream(ctx, p.Name(), p.Observer(), func(ctx context.Context) (providers.ChunkSource, error) {
		stream, err := providers.RetryRateLimited(ctx, p.Config(), p.Observer(), func() (*goopenai.ChatCompletionStream, error) {
			start := time.Now()
			stream, err := p.client.CreateChatCompletionStream(ctx, req)
			if err != nil {
				err = mapError(ctx, p.Name(), err)
			}
			p.RecordRequest(start, err)
			return stream, err
		})
		if err != nil {
			return nil, err
		}
		return &chunkSource{ctx: ctx, name: p.Name(), stream: stream}, nil
	})
}

// HealthCheck lists models, which verifies both reachability and the key.
func (p *Provider) HealthCheck(ctx context.Context) error {
	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	if _, err := p.client.ListModels(ctx); err != nil {
		return mapError(ctx, p.Name(), err)
	}
	return nil
}

func (p *Provider) buildRequest(content string, history []providers.Message, opts providers.ChatOptions) goopenai.ChatCompletionRequest {
	cfg := p.Config()
	temperature, maxTokens, topP := cfg.Sampling(opts)

	msgs := providers.Conversation(history, content)
	req := goopenai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    make([]goopenai.ChatCompletionMessage, len(msgs)),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
		TopP:        float32(topP),
	}
	for i, m := range msgs {
		req.Messages[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return req
}

// chunkSource adapts an SDK stream to providers.ChunkSource.
type chunkSource struct {
	ctx    context.Context
	name   providers.Name
	stream *goopenai.ChatCompletionStream
}

func (s *chunkSource) Next() (string, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", mapError(s.ctx, s.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chunkSource) Close() error {
	return s.stream.Close()
}
