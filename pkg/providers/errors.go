package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a provider failure.
type Kind string

const (
	// KindRateLimited means the provider answered 429 and local retries were exhausted.
	KindRateLimited Kind = "rate_limited"
	// KindUnauthorized means the provider rejected the credentials.
	KindUnauthorized Kind = "unauthorized"
	// KindTransport covers network, DNS, timeout and unexpected status failures.
	KindTransport Kind = "transport"
	// KindMalformed means the provider answered with an unexpected shape.
	KindMalformed Kind = "malformed"
	// KindCancelled means the caller cancelled the request.
	KindCancelled Kind = "cancelled"
)

// Sentinel errors matched by *ProviderError through errors.Is.
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTransport    = errors.New("transport failure")
	ErrMalformed    = errors.New("malformed response")
	ErrCancelled    = errors.New("request cancelled")
)

// ProviderError is the single error type returned by provider clients.
type ProviderError struct {
	// Provider is the name of the provider that failed
	Provider Name

	// Kind classifies the failure
	Kind Kind

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the provider's error text
	Message string

	// RetryAfter is the provider's Retry-After hint, if any
	RetryAfter time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "provider %q %s", e.Provider, e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil && (e.Message == "" || !strings.Contains(e.Message, e.Cause.Error())) {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *ProviderError) Is(target error) bool {
	switch e.Kind {
	case KindRateLimited:
		return target == ErrRateLimited
	case KindUnauthorized:
		return target == ErrUnauthorized
	case KindTransport:
		return target == ErrTransport
	case KindMalformed:
		return target == ErrMalformed
	case KindCancelled:
		return target == ErrCancelled
	}
	return false
}

// KindOf returns the kind of the first *ProviderError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// StatusError maps a non-2xx HTTP response onto the error taxonomy.
func StatusError(provider Name, status int, body string, retryAfter time.Duration) *ProviderError {
	e := &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    strings.TrimSpace(body),
	}
	switch status {
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = retryAfter
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = KindUnauthorized
	default:
		e.Kind = KindTransport
	}
	return e
}

// RequestError maps an error from issuing a request or reading a body onto
// the error taxonomy. Caller cancellation wins over every other cause.
func RequestError(ctx context.Context, provider Name, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &ProviderError{Provider: provider, Kind: KindCancelled, Message: "request cancelled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Kind: KindTransport, Message: "request timed out", Cause: err}
	}
	return &ProviderError{Provider: provider, Kind: KindTransport, Cause: err}
}

// MalformedError reports a response whose shape could not be decoded.
func MalformedError(provider Name, raw string, cause error) *ProviderError {
	const maxRaw = 200
	if len(raw) > maxRaw {
		raw = raw[:maxRaw] + "..."
	}
	return &ProviderError{Provider: provider, Kind: KindMalformed, Message: raw, Cause: cause}
}

// WireError is the error object providers embed in a response body, and
// in SSE payloads once a stream has been accepted.
type WireError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// FrameError maps an in-band error object onto the error taxonomy. Rate
// limit and quota signals in the code, type, status or message classify
// as KindRateLimited, codes 401 and 403 as KindUnauthorized, and anything
// else as KindTransport. Provider may be left empty for the caller to fill.
func FrameError(provider Name, w *WireError) *ProviderError {
	e := &ProviderError{Provider: provider, Kind: KindTransport, Message: w.Message}
	code := ""
	if w.Code != nil {
		code = fmt.Sprint(w.Code)
	}
	if status, err := strconv.Atoi(code); err == nil {
		e.StatusCode = status
	}

	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		LooksRateLimited(code), LooksRateLimited(w.Type), LooksRateLimited(w.Status), LooksRateLimited(w.Message):
		e.Kind = KindRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		e.Kind = KindUnauthorized
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(strings.Join([]string{w.Type, w.Status, code}, " "))
	}
	return e
}

// ConfigError represents a provider configuration error.
// It is raised at construction time, for example when a credential is missing.
type ConfigError struct {
	// Provider is the name of the provider with invalid configuration
	Provider Name

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

var rateLimitMarkers = []string{
	"429",
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"resource_exhausted",
	"resource exhausted",
	"too many requests",
}

// LooksRateLimited reports whether an error message carries rate-limit or
// quota signals. It is a best-effort heuristic for errors without a status.
func LooksRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range rateLimitMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// LooksQuotaExhausted reports whether an error message mentions an exhausted quota.
func LooksQuotaExhausted(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "resource_exhausted")
}

// UserMessage renders err as a terminal, human-readable message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		if errors.Is(err, context.Canceled) {
			return "Request cancelled."
		}
		if LooksQuotaExhausted(err.Error()) {
			return "The AI provider's quota is exhausted. Please try again later or switch providers."
		}
		if LooksRateLimited(err.Error()) {
			return "The AI is currently busy. Please wait a moment and try again."
		}
		return "Something went wrong while contacting the AI provider. Please try again."
	}

	switch pe.Kind {
	case KindRateLimited:
		if LooksQuotaExhausted(pe.Message) {
			return fmt.Sprintf("The %s quota is exhausted. Please try again later or switch providers.", pe.Provider)
		}
		return fmt.Sprintf("%s is currently busy (rate limited). Please wait a moment and try again.", pe.Provider)
	case KindUnauthorized:
		return fmt.Sprintf("%s rejected the configured credentials. Check the API key.", pe.Provider)
	case KindMalformed:
		return fmt.Sprintf("%s returned a response that could not be understood.", pe.Provider)
	case KindCancelled:
		return "Request cancelled."
	default:
		if LooksQuotaExhausted(pe.Message) {
			return fmt.Sprintf("The %s quota is exhausted. Please try again later or switch providers.", pe.Provider)
		}
		return fmt.Sprintf("Could not reach %s. Please try again.", pe.Provider)
	}
}
