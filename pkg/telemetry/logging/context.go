package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ProviderKey is the context key for provider names.
	ProviderKey contextKey = "provider"

	// ConversationKey is the context key for conversation identifiers.
	ConversationKey contextKey = "conversation_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// NewRequestContext tags ctx with a fresh request ID.
func NewRequestContext(ctx context.Context) context.Context {
	return WithRequestID(ctx, uuid.NewString())
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithProvider adds a provider name to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// GetProvider retrieves the provider name from the context.
func GetProvider(ctx context.Context) string {
	if provider, ok := ctx.Value(ProviderKey).(string); ok {
		return provider
	}
	return ""
}

// WithConversation adds a conversation identifier to the context.
func WithConversation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConversationKey, id)
}

// GetConversation retrieves the conversation identifier from the context.
func GetConversation(ctx context.Context) string {
	if id, ok := ctx.Value(ConversationKey).(string); ok {
		return id
	}
	return ""
}

// contextAttrs extracts the log fields carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if v := GetRequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), v))
	}
	if v := GetConversation(ctx); v != "" {
		attrs = append(attrs, slog.String(string(ConversationKey), v))
	}
	if v := GetProvider(ctx); v != "" {
		attrs = append(attrs, slog.String(string(ProviderKey), v))
	}
	return attrs
}
