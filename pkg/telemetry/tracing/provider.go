package tracing

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/parley/pkg/providers"
)

// Span attribute keys.
const (
	AttrProvider      = attribute.Key("parley.provider")
	AttrHistoryLength = attribute.Key("parley.history.length")
	AttrContentLength = attribute.Key("parley.content.length")
	AttrReplyLength   = attribute.Key("parley.reply.length")
	AttrStreamChunks  = attribute.Key("parley.stream.chunks")
	AttrErrorKind     = attribute.Key("parley.error.kind")
)

// Wrap decorates p so every Chat call and every stream runs in a client
// span. With tracing disabled p is returned unchanged. The signature matches
// providerfactory.Middleware.
func (t *Tracer) Wrap(p providers.ChatProvider) providers.ChatProvider {
	if !t.enabled {
		return p
	}
	return &tracedProvider{inner: p, tracer: t}
}

type tracedProvider struct {
	inner  providers.ChatProvider
	tracer *Tracer
}

var (
	_ providers.HealthChecker  = (*tracedProvider)(nil)
	_ providers.HealthReporter = (*tracedProvider)(nil)
	_ io.Closer                = (*tracedProvider)(nil)
)

func (p *tracedProvider) Name() providers.Name {
	return p.inner.Name()
}

func (p *tracedProvider) start(ctx context.Context, op, content string, history []providers.Message) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrProvider.String(string(p.inner.Name())),
			AttrHistoryLength.Int(len(history)),
			AttrContentLength.Int(len(content)),
		),
	)
}

func (p *tracedProvider) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	ctx, span := p.start(ctx, "chat", content, history)
	defer span.End()

	reply, err := p.inner.Chat(ctx, content, history, opts)
	if err != nil {
		recordFailure(span, err)
		return "", err
	}

	span.SetAttributes(AttrReplyLength.Int(len(reply)))
	SetError(span, nil)
	return reply, nil
}

func (p *tracedProvider) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	ctx, span := p.start(ctx, "chat.stream", content, history)
	return &tracedStream{
		inner: p.inner.ChatStream(ctx, content, history, opts),
		span:  span,
	}
}

// HealthCheck probes the wrapped provider when it supports probing.
func (p *tracedProvider) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(providers.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// GetHealth reports the wrapped provider's health, or healthy when it does
// not track any.
func (p *tracedProvider) GetHealth() providers.ProviderHealth {
	if hr, ok := p.inner.(providers.HealthReporter); ok {
		return hr.GetHealth()
	}
	return providers.ProviderHealth{IsHealthy: true}
}

func (p *tracedProvider) Close() error {
	if c, ok := p.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the decorated provider.
func (p *tracedProvider) Unwrap() providers.ChatProvider {
	return p.inner
}

// tracedStream ends its span at end of stream, on the first error, or on
// Close, whichever comes first.
type tracedStream struct {
	inner providers.Stream
	span  trace.Span

	mu     sync.Mutex
	chunks int
	once   sync.Once
}

func (s *tracedStream) Recv() (string, error) {
	chunk, err := s.inner.Recv()
	switch {
	case err == nil:
		s.mu.Lock()
		s.chunks++
		s.mu.Unlock()
	case errors.Is(err, io.EOF):
		s.end(nil)
	default:
		s.end(err)
	}
	return chunk, err
}

func (s *tracedStream) Close() error {
	err := s.inner.Close()
	s.end(nil)
	return err
}

func (s *tracedStream) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.span.SetAttributes(AttrStreamChunks.Int(s.chunks))
		s.mu.Unlock()

		if err != nil {
			recordFailure(s.span, err)
		} else {
			SetError(s.span, nil)
		}
		s.span.End()
	})
}

func recordFailure(span trace.Span, err error) {
	if kind := providers.KindOf(err); kind != "" {
		span.SetAttributes(AttrErrorKind.String(string(kind)))
	}
	SetError(span, err)
}
