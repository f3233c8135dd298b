package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"mercator-hq/parley/pkg/config"
)

// Redactor removes credentials and personal data from log output.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternGoogleKey   = "google_api_key"
	PatternBearerToken = "bearer_token"
	PatternEmail       = "email"
	PatternPassword    = "password"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	// OpenAI and DeepSeek style keys
	{PatternAPIKey, `sk-[a-zA-Z0-9_\-]{8,}`, "sk-***"},
	{PatternGoogleKey, `AIza[0-9A-Za-z_\-]{20,}`, "AIza***"},
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"},
	{PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"},
}

// sensitiveKeys mark attributes whose whole value is redacted.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token",
	"api_key", "apikey", "authorization", "x-goog-api-key",
	"private_key",
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// the custom ones. Invalid custom patterns are skipped; configuration
// validation rejects them before this point.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "***"
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: regex, replacement: replacement})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts one attribute. Values under sensitive keys are masked
// entirely; strings and errors are scanned with the patterns; groups are
// walked recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactAPIKey(a.Value.String()))
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, r.RedactString(x.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, r.RedactString(x.String()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// Names returns the pattern names in the order they are applied.
func (r *Redactor) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.name
	}
	return names
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	return slices.ContainsFunc(sensitiveKeys, func(s string) bool {
		return strings.Contains(lower, s)
	})
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}
