package providerfactory

import (
	"errors"
	"testing"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/providers/deepseek"
	"mercator-hq/parley/pkg/providers/googleai"
	"mercator-hq/parley/pkg/providers/openai"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     providers.Name
		wantType string
	}{
		{providers.GoogleAI, "googleai"},
		{providers.DeepSeek, "deepseek"},
		{providers.OpenAI, "openai"},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			p, err := NewProvider(providers.ProviderConfig{
				Name:   tt.name,
				APIKey: "test-key",
			}, nil)
			if err != nil {
				t.Fatalf("NewProvider() failed: %v", err)
			}
			if p.Name() != tt.name {
				t.Errorf("expected name %s, got %s", tt.name, p.Name())
			}

			var ok bool
			switch tt.wantType {
			case "googleai":
				_, ok = p.(*googleai.Provider)
			case "deepseek":
				_, ok = p.(*deepseek.Provider)
			case "openai":
				_, ok = p.(*openai.Provider)
			}
			if !ok {
				t.Errorf("unexpected adapter type %T", p)
			}
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	p, err := NewProvider(providers.ProviderConfig{Name: "claude", APIKey: "k"}, nil)
	if p != nil {
		t.Errorf("expected nil provider, got %T", p)
	}

	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "name" {
		t.Fatalf("expected ConfigError on name, got %v", err)
	}
}

func TestNewProvider_MissingKeyIsUntypedNil(t *testing.T) {
	p, err := NewProvider(providers.ProviderConfig{Name: providers.DeepSeek}, nil)
	if err == nil {
		t.Fatal("expected missing key error")
	}
	if p != nil {
		t.Errorf("expected untyped nil provider, got %#v", p)
	}
}

func TestRegisterFromConfig(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GOOGLE_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	reg := NewRegistry()
	RegisterFromConfig(reg, config.Default(), nil)

	names := reg.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 registrations, got %v", names)
	}
	if reg.Cached(providers.DeepSeek) {
		t.Error("registration must not construct providers")
	}

	p, err := reg.Get(providers.DeepSeek)
	if err != nil {
		t.Fatalf("Get(deepseek) failed: %v", err)
	}
	if p.Name() != providers.DeepSeek {
		t.Errorf("expected deepseek, got %s", p.Name())
	}

	// A missing key surfaces on first use, not at registration.
	_, err = reg.Get(providers.GoogleAI)
	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError for googleai without key, got %v", err)
	}
	if reg.Cached(providers.GoogleAI) {
		t.Error("failed construction must not be cached")
	}

	// Exporting the key afterwards is enough.
	t.Setenv("GOOGLE_API_KEY", "late-key")
	if _, err := reg.Get(providers.GoogleAI); err != nil {
		t.Errorf("expected retry with key to succeed, got %v", err)
	}
}

func TestRegisterFromConfig_OnlyConfigured(t *testing.T) {
	cfg := config.Default()
	delete(cfg.Providers, "openai")

	reg := NewRegistry()
	RegisterFromConfig(reg, cfg, nil)

	if reg.Has(providers.OpenAI) {
		t.Error("openai should not be registered")
	}
	if _, err := reg.Get(providers.OpenAI); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// taggedProvider marks instances that went through a middleware.
type taggedProvider struct {
	providers.ChatProvider
	tag string
}

func TestRegisterFromConfig_Middleware(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")

	var order []string
	tag := func(name string) Middleware {
		return func(p providers.ChatProvider) providers.ChatProvider {
			order = append(order, name)
			return taggedProvider{ChatProvider: p, tag: name}
		}
	}

	reg := NewRegistry()
	RegisterFromConfig(reg, config.Default(), nil, tag("inner"), tag("outer"))

	p, err := reg.Get(providers.DeepSeek)
	if err != nil {
		t.Fatalf("Get(deepseek) failed: %v", err)
	}
	outer, ok := p.(taggedProvider)
	if !ok || outer.tag != "outer" {
		t.Fatalf("expected outermost middleware last, got %#v", p)
	}
	if len(order) != 2 || order[0] != "inner" {
		t.Errorf("expected middleware applied in order, got %v", order)
	}
	if p.Name() != providers.DeepSeek {
		t.Errorf("expected wrapped provider to keep its name, got %s", p.Name())
	}
}
