package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// HTTPProvider is the base implementation for HTTP-based provider adapters.
// It provides connection pooling, rate-limit retries, error classification
// and health tracking.
//
// Concrete adapters (googleai, deepseek) embed this struct and implement the
// ChatProvider methods on top of DoRequest and DoJSONRequest.
type HTTPProvider struct {
	// config contains the provider configuration
	config ProviderConfig

	// client is the HTTP client with connection pooling
	client *http.Client

	// observer receives per-attempt traffic events
	observer Observer

	// health tracks the provider's health status
	health ProviderHealth

	// healthMu protects concurrent access to health status
	healthMu sync.RWMutex
}

// NewHTTPProvider creates a new base HTTP provider with connection pooling.
// The client has no overall timeout so that streams can outlive
// config.Timeout; unary calls bound themselves with WithTimeout and every
// request is bounded by a response header timeout.
func NewHTTPProvider(config ProviderConfig, observer Observer) *HTTPProvider {
	if observer == nil {
		observer = NopObserver{}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.Timeout,
		ForceAttemptHTTP2:     true,
	}

	return &HTTPProvider{
		config:   config,
		client:   &http.Client{Transport: transport},
		observer: observer,
		health: ProviderHealth{
			IsHealthy:             true,
			LastCheck:             time.Now(),
			LastSuccessfulRequest: time.Now(),
		},
	}
}

// Name returns the provider's configured name.
func (p *HTTPProvider) Name() Name {
	return p.config.Name
}

// Config returns the provider's configuration.
func (p *HTTPProvider) Config() ProviderConfig {
	return p.config
}

// HTTPClient returns the pooled client, for adapters built on an SDK.
func (p *HTTPProvider) HTTPClient() *http.Client {
	return p.client
}

// Observer returns the traffic observer.
func (p *HTTPProvider) Observer() Observer {
	return p.observer
}

// WithTimeout bounds ctx by the configured request timeout.
func (p *HTTPProvider) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

// IsHealthy returns the current health status.
func (p *HTTPProvider) IsHealthy() bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health.IsHealthy
}

// GetHealth returns detailed health information.
func (p *HTTPProvider) GetHealth() ProviderHealth {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health
}

// RecordOutcome updates health from the outcome of one upstream attempt.
// Cancellations say nothing about the provider and are ignored.
func (p *HTTPProvider) RecordOutcome(err error) {
	if KindOf(err) == KindCancelled {
		return
	}

	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	p.health.LastCheck = time.Now()
	p.health.TotalRequests++

	if err == nil {
		p.health.IsHealthy = true
		p.health.ConsecutiveFailures = 0
		p.health.LastError = nil
		p.health.LastSuccessfulRequest = time.Now()
		return
	}

	p.health.FailedRequests++
	p.health.ConsecutiveFailures++
	p.health.LastError = err

	// Mark unhealthy after 3 consecutive failures
	if p.health.ConsecutiveFailures >= 3 && p.health.IsHealthy {
		p.health.IsHealthy = false
		slog.Warn("provider marked unhealthy",
			"provider", p.config.Name,
			"consecutive_failures", p.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// DoRequest performs an HTTP request. A 429 answer is retried with
// exponential backoff up to MaxRetries times; any other failure is returned
// at once as a *ProviderError. On success the caller owns resp.Body.
func (p *HTTPProvider) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return RetryRateLimited(ctx, p.config, p.observer, func() (*http.Response, error) {
		return p.doOnce(ctx, method, url, body, headers)
	})
}

// doOnce performs a single attempt.
func (p *HTTPProvider) doOnce(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("sending request to provider",
		"provider", p.config.Name,
		"method", method,
		"url", url,
	)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		perr := RequestError(ctx, p.config.Name, err)
		p.RecordRequest(start, perr)
		return nil, perr
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.RecordRequest(start, nil)
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	perr := StatusError(p.config.Name, resp.StatusCode, string(errorBody), parseRetryAfter(resp.Header.Get("Retry-After")))
	p.RecordRequest(start, perr)

	if perr.Kind == KindRateLimited {
		slog.Warn("provider rate limited request",
			"provider", p.config.Name,
			"status", resp.StatusCode,
			"retry_after", perr.RetryAfter,
		)
	}
	return nil, perr
}

// RecordRequest reports one upstream attempt to the observer and the health
// tracker. Adapters that bypass DoRequest call it themselves.
func (p *HTTPProvider) RecordRequest(start time.Time, err error) {
	p.observer.ObserveRequest(p.config.Name, p.config.Model, time.Since(start), err)
	p.RecordOutcome(err)
}

// DoJSONRequest performs a JSON request and decodes the response into respBody.
func (p *HTTPProvider) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody any, headers map[string]string) error {
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := p.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return RequestError(ctx, p.config.Name, err)
	}

	if respBody != nil {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return MalformedError(p.config.Name, string(responseBytes), err)
		}
	}

	return nil
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	slog.Debug("provider closed", "provider", p.config.Name)
	return nil
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

// SSESource adapts an SSE response body to a ChunkSource using decode to
// extract the text of each event. A *ProviderError from decode is returned
// as is; any other decode error is reported as malformed.
func SSESource(provider Name, body io.ReadCloser, decode func(data []byte) (string, error)) ChunkSource {
	return &sseSource{provider: provider, body: body, dec: NewSSEDecoder(body), decode: decode}
}

type sseSource struct {
	provider Name
	body     io.ReadCloser
	dec      *SSEDecoder
	decode   func([]byte) (string, error)
}

func (s *sseSource) Next() (string, error) {
	data, err := s.dec.Next()
	if err != nil {
		return "", err
	}
	chunk, err := s.decode(data)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			if pe.Provider == "" {
				pe.Provider = s.provider
			}
			return "", pe
		}
		return "", MalformedError(s.provider, string(data), err)
	}
	return chunk, nil
}

func (s *sseSource) Close() error {
	return s.body.Close()
}
