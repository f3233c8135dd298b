package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/parley/pkg/config"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "openai key", input: "key=sk-proj1234567890", want: "key=sk-***"},
		{name: "google key", input: "AIzaSyA1234567890abcdefghij", want: "AIza***"},
		{name: "bearer", input: "Authorization: Bearer abc123.def", want: "Authorization: Bearer ***"},
		{name: "email", input: "contact dev@example.com now", want: "contact ***@*** now"},
		{name: "password", input: "password=hunter2", want: "password: ***"},
		{name: "clean", input: "nothing to hide", want: "nothing to hide"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_CustomPatterns(t *testing.T) {
	r := NewRedactor([]config.RedactPattern{
		{Name: "ticket", Pattern: `TICKET-\d+`, Replacement: "TICKET-#"},
		{Name: "session", Pattern: `sess_[a-z0-9]+`},
		{Name: "broken", Pattern: "("},
	})

	got := r.RedactString("TICKET-42 in sess_abc123")
	if got != "TICKET-# in ***" {
		t.Errorf("unexpected redaction %q", got)
	}

	names := r.Names()
	if names[len(names)-1] != "session" {
		t.Errorf("expected invalid pattern skipped, got %v", names)
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor(nil)

	t.Run("sensitive key", func(t *testing.T) {
		got := r.RedactAttr(slog.String("Authorization", "Bearer abcdefghijkl"))
		if got.Value.String() != "Bear***" {
			t.Errorf("unexpected value %q", got.Value.String())
		}
	})

	t.Run("short secret", func(t *testing.T) {
		got := r.RedactAttr(slog.String("password", "abc"))
		if got.Value.String() != "***" {
			t.Errorf("unexpected value %q", got.Value.String())
		}
	})

	t.Run("error value", func(t *testing.T) {
		got := r.RedactAttr(slog.Any("error", errors.New("rejected sk-abcdefghijkl")))
		if strings.Contains(got.Value.String(), "abcdefghijkl") {
			t.Errorf("error not redacted: %q", got.Value.String())
		}
	})

	t.Run("group", func(t *testing.T) {
		got := r.RedactAttr(slog.Group("request", slog.String("api_key", "sk-abcdefghijkl"), slog.Int("attempt", 2)))
		group := got.Value.Group()
		if len(group) != 2 {
			t.Fatalf("expected 2 attrs, got %d", len(group))
		}
		if group[0].Value.String() != "sk-a***" {
			t.Errorf("unexpected nested value %q", group[0].Value.String())
		}
		if group[1].Value.Int64() != 2 {
			t.Errorf("expected non-string attr untouched, got %v", group[1].Value)
		}
	})

	t.Run("other kinds", func(t *testing.T) {
		got := r.RedactAttr(slog.Int("status", 429))
		if got.Value.Int64() != 429 {
			t.Errorf("expected int untouched, got %v", got.Value)
		}
	})
}

func TestRedactAPIKey(t *testing.T) {
	if got := RedactAPIKey("short"); got != "***" {
		t.Errorf("expected ***, got %q", got)
	}
	if got := RedactAPIKey("sk-1234567890"); got != "sk-1***" {
		t.Errorf("expected sk-1***, got %q", got)
	}
}
