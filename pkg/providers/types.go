package providers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Name identifies a provider backend. It is the only valid key into the
// provider registry.
type Name string

// Known provider names.
const (
	GoogleAI Name = "googleai"
	DeepSeek Name = "deepseek"
	OpenAI   Name = "openai"
)

// KnownNames lists every provider backend this module can construct.
var KnownNames = []Name{GoogleAI, DeepSeek, OpenAI}

// ParseName converts a string into a known provider name.
func ParseName(s string) (Name, error) {
	for _, n := range KnownNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (known: googleai, deepseek, openai)", s)
}

// String implements fmt.Stringer.
func (n Name) String() string {
	return string(n)
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Messages are treated as immutable
// once created; history slices are owned by the caller.
type Message struct {
	// ID is a unique identifier assigned at creation
	ID string `json:"id,omitempty"`

	// Role identifies the sender (user, assistant, system)
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// Timestamp is the RFC3339 creation time
	Timestamp string `json:"timestamp,omitempty"`
}

// NewMessage creates a message stamped with a fresh ID and the current time.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Conversation returns a new slice holding history followed by a user turn
// with the given content. The caller's slice is never modified.
func Conversation(history []Message, content string) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, NewMessage(RoleUser, content))
}

// ChatOptions carries per-call overrides. Nil fields fall back to the
// provider configuration. Cancellation travels on the context.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// RateLimitHints are advisory limits published by a provider. They are not
// enforced by the client.
type RateLimitHints struct {
	RequestsPerMinute int
	RequestsPerDay    int
}

// StreamSimulation chunks a whole response into a paced stream for
// backends whose streaming endpoint is unavailable or disabled.
type StreamSimulation struct {
	Enabled   bool
	ChunkSize int
	Delay     time.Duration
}

// ProviderConfig contains configuration for a single provider instance.
// It is immutable after load.
type ProviderConfig struct {
	// Name is the provider identifier
	Name Name

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Model is the model identifier sent with every request
	Model string

	// Temperature, MaxTokens and TopP are the default sampling parameters
	Temperature float64
	MaxTokens   int
	TopP        float64

	// MaxRetries bounds local retries of rate-limited requests
	MaxRetries int

	// RetryDelay is the base delay of the rate-limit retry schedule
	RetryDelay time.Duration

	// Timeout bounds a whole unary request and the wait for stream headers
	Timeout time.Duration

	// RateLimit holds advisory limits
	RateLimit RateLimitHints

	// StreamSimulation configures simulated streaming (googleai only)
	StreamSimulation StreamSimulation

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Sampling resolves the effective sampling parameters for a call.
func (c ProviderConfig) Sampling(opts ChatOptions) (temperature float64, maxTokens int, topP float64) {
	temperature, maxTokens, topP = c.Temperature, c.MaxTokens, c.TopP
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	if opts.TopP != nil {
		topP = *opts.TopP
	}
	return temperature, maxTokens, topP
}

// ProviderHealth tracks the observed health of a provider.
type ProviderHealth struct {
	// IsHealthy indicates whether the provider is currently healthy
	IsHealthy bool

	// LastCheck is the timestamp of the last recorded outcome
	LastCheck time.Time

	// LastError is the most recent error encountered (nil if healthy)
	LastError error

	// ConsecutiveFailures counts sequential failures
	ConsecutiveFailures int

	// LastSuccessfulRequest is the timestamp of the last successful request
	LastSuccessfulRequest time.Time

	// TotalRequests is the total number of requests sent to this provider
	TotalRequests int64

	// FailedRequests is the total number of failed requests
	FailedRequests int64
}
