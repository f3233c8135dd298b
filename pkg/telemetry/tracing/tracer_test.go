package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/parley/pkg/config"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled: true,
		Sampler: SamplerAlways,
	}, "test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter failed: %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("expected no trace id from a noop span")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, "test"); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCreateSampler_Errors(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{strategy: SamplerAlways},
		{strategy: SamplerNever},
		{strategy: SamplerRatio, ratio: 0.5},
		{strategy: SamplerRatio, ratio: 1.5, wantErr: true},
		{strategy: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			_, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			}
		})
	}
}

func TestTracer_StartRecordsSpans(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "parent")
	if TraceID(ctx) == "" {
		t.Error("expected a trace id inside a recorded span")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "parent" {
		t.Fatalf("expected one span named parent, got %v", spans)
	}
}

func TestInjectExtract(t *testing.T) {
	tracer, _ := newTestTracer(t)

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ctx, span := tracer.Start(context.Background(), "handshake")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	got := Extract(context.Background(), headers)
	if TraceID(got) != TraceID(ctx) {
		t.Errorf("expected extracted trace id %s, got %s", TraceID(ctx), TraceID(got))
	}
}
