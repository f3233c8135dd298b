package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/parley/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "json", cfg: Config{Level: "info", Format: "json"}},
		{name: "text", cfg: Config{Level: "debug", Format: "text"}},
		{name: "console", cfg: Config{Level: "warn", Format: "console"}},
		{name: "defaults", cfg: Config{}},
		{name: "invalid level", cfg: Config{Level: "trace"}, wantErr: true},
		{name: "invalid format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("expected a logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithProvider(ctx, "googleai")
	logger.InfoContext(ctx, "chat started")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["provider"] != "googleai" {
		t.Errorf("expected provider googleai, got %v", entry["provider"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("calling with sk-abcdefghijklmnop",
		"api_key", "AIzaSyA1234567890abcdefghij",
		"header", "Bearer abc.def.ghi",
		"error", errors.New("bad key sk-zyxwvutsrqponml"),
	)

	out := buf.String()
	for _, secret := range []string{"sk-abcdefghijklmnop", "AIzaSyA1234567890abcdefghij", "abc.def.ghi", "sk-zyxwvutsrqponml"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into %q", secret, out)
		}
	}

	entry := decodeLine(t, &buf)
	if entry["api_key"] != "AIza***" {
		t.Errorf("expected masked api_key, got %v", entry["api_key"])
	}
}

func TestLogger_WithAttrsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("token", "very-secret-token").Info("hello")
	if strings.Contains(buf.String(), "very-secret-token") {
		t.Errorf("token leaked: %q", buf.String())
	}
}

func TestLogger_RedactionDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("key sk-abcdefghijklmnop")
	if !strings.Contains(buf.String(), "sk-abcdefghijklmnop") {
		t.Errorf("expected message unchanged, got %q", buf.String())
	}
}

func TestLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "console", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("provider switched", "from", "googleai", "to", "deepseek")
	out := buf.String()
	if !strings.Contains(out, "provider switched") || !strings.Contains(out, "deepseek") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestFromConfig(t *testing.T) {
	off := false
	cfg := config.LoggingConfig{
		Level:     "debug",
		Format:    "text",
		RedactPII: &off,
		RedactPatterns: []config.RedactPattern{
			{Name: "ticket", Pattern: `TICKET-\d+`},
		},
	}

	got := FromConfig(cfg, &bytes.Buffer{})
	if got.Level != "debug" || got.Format != "text" {
		t.Errorf("unexpected level/format %q/%q", got.Level, got.Format)
	}
	if got.RedactPII {
		t.Error("expected redaction disabled")
	}
	if len(got.RedactPatterns) != 1 {
		t.Errorf("expected custom pattern carried over, got %d", len(got.RedactPatterns))
	}

	cfg.RedactPII = nil
	if !FromConfig(cfg, nil).RedactPII {
		t.Error("expected redaction enabled when unset")
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if _, err := Setup(Config{Level: "info", Format: "json", Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	slog.Info("through default")
	if !strings.Contains(buf.String(), "through default") {
		t.Errorf("expected default logger to write to buffer, got %q", buf.String())
	}
}
