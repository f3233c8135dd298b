package tracing

import (
	"context"
	"errors"
	"io"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	internalrouting "mercator-hq/parley/internal/routing"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
)

func attr(span tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWrap_DisabledIsIdentity(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}
	mock := internalrouting.NewMockProvider(providers.GoogleAI)
	if got := tracer.Wrap(mock); got != providers.ChatProvider(mock) {
		t.Errorf("expected provider unchanged when disabled, got %T", got)
	}
}

func TestWrap_Chat(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	mock := internalrouting.NewMockProvider(providers.GoogleAI)
	p := tracer.Wrap(mock)

	if p.Name() != providers.GoogleAI {
		t.Errorf("expected googleai, got %s", p.Name())
	}

	history := []providers.Message{providers.NewMessage(providers.RoleUser, "hi")}
	reply, err := p.Chat(context.Background(), "hello", history, providers.ChatOptions{})
	if err != nil || reply != "mock response" {
		t.Fatalf("unexpected result %q, %v", reply, err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "chat" {
		t.Errorf("expected span chat, got %s", span.Name)
	}
	if v, ok := attr(span, AttrProvider); !ok || v.AsString() != "googleai" {
		t.Errorf("expected provider attribute, got %v", v)
	}
	if v, ok := attr(span, AttrHistoryLength); !ok || v.AsInt64() != 1 {
		t.Errorf("expected history length 1, got %v", v)
	}
	if v, ok := attr(span, AttrReplyLength); !ok || v.AsInt64() != int64(len("mock response")) {
		t.Errorf("unexpected reply length %v", v)
	}
	if span.Status.Code != codes.Ok {
		t.Errorf("expected ok status, got %v", span.Status)
	}
}

func TestWrap_ChatError(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	mock := internalrouting.NewMockProvider(providers.DeepSeek)
	mock.SetChat(internalrouting.ChatResult{Err: &providers.ProviderError{
		Provider: providers.DeepSeek,
		Kind:     providers.KindRateLimited,
		Message:  "slow down",
	}})

	_, err := tracer.Wrap(mock).Chat(context.Background(), "hello", nil, providers.ChatOptions{})
	if !errors.Is(err, providers.ErrRateLimited) {
		t.Fatalf("expected rate limited error to pass through, got %v", err)
	}

	span := exporter.GetSpans()[0]
	if span.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status)
	}
	if v, ok := attr(span, AttrErrorKind); !ok || v.AsString() != string(providers.KindRateLimited) {
		t.Errorf("expected error kind attribute, got %v", v)
	}
	if len(span.Events) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestWrap_Stream(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	mock := internalrouting.NewMockProvider(providers.GoogleAI)
	mock.SetStream(internalrouting.StreamScript{Chunks: []string{"a", "b", "c"}})

	stream := tracer.Wrap(mock).ChatStream(context.Background(), "hello", nil, providers.ChatOptions{})
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_ = stream.Close()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected exactly one span after EOF and Close, got %d", len(spans))
	}
	if spans[0].Name != "chat.stream" {
		t.Errorf("expected span chat.stream, got %s", spans[0].Name)
	}
	if v, ok := attr(spans[0], AttrStreamChunks); !ok || v.AsInt64() != 3 {
		t.Errorf("expected 3 chunks, got %v", v)
	}
}

func TestWrap_StreamClosedEarly(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	mock := internalrouting.NewMockProvider(providers.GoogleAI)

	stream := tracer.Wrap(mock).ChatStream(context.Background(), "hello", nil, providers.ChatOptions{})
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exporter.GetSpans()) != 0 {
		t.Fatal("span must stay open while the stream is live")
	}

	_ = stream.Close()
	if len(exporter.GetSpans()) != 1 {
		t.Fatal("expected Close to end the span")
	}
}

func TestWrap_ForwardsOptionalInterfaces(t *testing.T) {
	tracer, _ := newTestTracer(t)
	mock := internalrouting.NewMockProvider(providers.OpenAI)
	mock.SetHealthy(false)
	p := tracer.Wrap(mock)

	if err := p.(providers.HealthChecker).HealthCheck(context.Background()); err == nil {
		t.Error("expected health check failure to be forwarded")
	}
	if p.(providers.HealthReporter).GetHealth().IsHealthy {
		t.Error("expected unhealthy report to be forwarded")
	}
	if err := p.(io.Closer).Close(); err != nil {
		t.Fatal(err)
	}
	if !mock.Closed() {
		t.Error("expected Close to reach the wrapped provider")
	}
}
