package logging

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetProvider(ctx) != "" || GetConversation(ctx) != "" {
		t.Fatal("expected empty fields on a bare context")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithProvider(ctx, "deepseek")
	ctx = WithConversation(ctx, "conv-9")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
	if got := GetProvider(ctx); got != "deepseek" {
		t.Errorf("expected deepseek, got %q", got)
	}
	if got := GetConversation(ctx); got != "conv-9" {
		t.Errorf("expected conv-9, got %q", got)
	}

	attrs := contextAttrs(ctx)
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attrs, got %d", len(attrs))
	}
	if attrs[0].Key != "request_id" || attrs[2].Key != "provider" {
		t.Errorf("unexpected attr order %v", attrs)
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	if _, err := uuid.Parse(GetRequestID(ctx)); err != nil {
		t.Errorf("expected a uuid request id, got %q: %v", GetRequestID(ctx), err)
	}
}
