// Package openai implements the OpenAI chat adapter on top of
// github.com/sashabaranov/go-openai.
//
// The SDK owns the wire format. This package maps SDK errors into the
// shared taxonomy (429 is rate limited, 401 and 403 are unauthorized, other
// statuses and network failures are transport errors, undecodable payloads
// are malformed) and wraps both unary calls and stream creation in the same
// rate-limit retry schedule as the other adapters.
//
// # Basic Usage
//
//	provider, err := openai.NewProvider(providers.ProviderConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stream := provider.ChatStream(ctx, "Hello!", history, providers.ChatOptions{})
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package openai
