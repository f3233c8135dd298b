// Package tracing traces chat calls with OpenTelemetry.
//
// Tracer.Wrap is a providerfactory.Middleware: every provider built by the
// registry gets a client span per Chat call ("chat") and per stream
// ("chat.stream"). Spans carry the provider name, history and content
// lengths, the reply length or chunk count, and the error kind on failure.
// Because failover retries the call on a second provider, a failed-over
// request shows up as two sibling spans under the caller's span.
//
// Spans are exported to an OTLP gRPC collector. Sampling follows the
// configured strategy ("always", "never", "ratio") wrapped in ParentBased.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//	providerfactory.RegisterFromConfig(reg, cfg, observer, tracer.Wrap)
package tracing
