package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/providers/deepseek"
	"mercator-hq/parley/pkg/providers/googleai"
	"mercator-hq/parley/pkg/providers/openai"
)

// NewProvider creates a new provider instance based on the configuration.
// The adapter is chosen by config.Name:
//   - "googleai": Gemini REST API
//   - "deepseek": DeepSeek chat completions
//   - "openai": OpenAI chat completions
//
// Example:
//
//	provider, err := NewProvider(providers.ProviderConfig{
//	    Name:   providers.DeepSeek,
//	    APIKey: "sk-...",
//	}, nil)
//	if err != nil {
//	    return err
//	}
func NewProvider(config providers.ProviderConfig, observer providers.Observer) (providers.ChatProvider, error) {
	slog.Debug("creating provider",
		"provider", config.Name,
		"model", config.Model,
	)

	var (
		provider providers.ChatProvider
		err      error
	)

	switch config.Name {
	case providers.GoogleAI:
		provider, err = asChatProvider(googleai.NewProvider(config, observer))
	case providers.DeepSeek:
		provider, err = asChatProvider(deepseek.NewProvider(config, observer))
	case providers.OpenAI:
		provider, err = asChatProvider(openai.NewProvider(config, observer))
	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "name",
			Message:  fmt.Sprintf("unsupported provider %q (supported: googleai, deepseek, openai)", config.Name),
		}
	}
	if err != nil {
		return nil, err
	}

	return provider, nil
}

// asChatProvider keeps a failed constructor from yielding a typed nil.
func asChatProvider[P providers.ChatProvider](p P, err error) (providers.ChatProvider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Middleware decorates a freshly built provider, e.g. with tracing.
type Middleware func(providers.ChatProvider) providers.ChatProvider

// RegisterFromConfig registers a constructor for every provider in cfg.
// Settings and credentials are resolved inside the constructor, so a
// provider with no API key only fails when it is first used. Middleware is
// applied in order to every instance built.
//
// Calling it again with a newer config replaces the constructors; instances
// that were already built keep running with their original settings.
func RegisterFromConfig(reg *Registry, cfg *config.Config, observer providers.Observer, middleware ...Middleware) {
	for _, name := range providers.KnownNames {
		if _, ok := cfg.Providers[string(name)]; !ok {
			continue
		}
		reg.Register(name, func() (providers.ChatProvider, error) {
			pc, err := cfg.Provider(name)
			if err != nil {
				return nil, err
			}
			p, err := NewProvider(pc, observer)
			if err != nil {
				return nil, err
			}
			for _, mw := range middleware {
				p = mw(p)
			}
			return p, nil
		})
	}

	slog.Debug("provider constructors registered", "providers", reg.Names())
}
