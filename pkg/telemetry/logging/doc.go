// Package logging builds the process logger on log/slog.
//
// Three formats are supported: "json" and "text" use the slog handlers,
// "console" renders colored lines with charmbracelet/log. Every format
// shares a wrapping handler that adds request_id, conversation_id and
// provider from the context and, when enabled, redacts credentials:
//
//   - sk-... and AIza... API keys
//   - Bearer tokens
//   - email addresses
//   - attributes named like api_key, token, authorization
//
// Usage:
//
//	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	ctx := logging.NewRequestContext(ctx)
//	logger.InfoContext(ctx, "chat started", "provider", "googleai")
package logging
