// Package deepseek implements the DeepSeek chat adapter.
//
// DeepSeek exposes an OpenAI-compatible chat completions endpoint, so the
// adapter builds its own small wire types and rides on
// providers.HTTPProvider for transport, 429 retries and health tracking.
//
// # Basic Usage
//
//	provider, err := deepseek.NewProvider(providers.ProviderConfig{
//	    APIKey: os.Getenv("DEEPSEEK_API_KEY"),
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	reply, err := provider.Chat(ctx, "Hello!", nil, providers.ChatOptions{})
//
// Streaming requests are not sent until the first Recv on the returned
// stream.
package deepseek
