// Package providers implements the client side of the chat backends.
//
// # Overview
//
// Every backend implements ChatProvider: a unary Chat call and a lazy
// ChatStream. Adapters live in sub-packages (googleai, deepseek, openai);
// this package holds what they share:
//
//  1. The data model (Message, ChatOptions, ProviderConfig)
//  2. HTTPProvider - pooled HTTP client with rate-limit retries and health tracking
//  3. SSEDecoder - incremental server-sent event framing
//  4. Stream plumbing - NewLazyStream, SSESource, SimulatedSource
//  5. The error taxonomy - ProviderError and its Kind
//
// # Retries
//
// Only HTTP 429 is retried locally. The delay before retry n is
// RetryDelay * 2^(n-1), and after MaxRetries retries the caller receives a
// KindRateLimited error. Everything else is returned immediately so the
// routing layer can decide whether to fail over.
//
// # Errors
//
//	reply, err := p.Chat(ctx, "Hello!", history, providers.ChatOptions{})
//	switch {
//	case errors.Is(err, providers.ErrRateLimited):
//	    // retries exhausted
//	case errors.Is(err, providers.ErrCancelled):
//	    // caller gave up; not a failure
//	case err != nil:
//	    fmt.Println(providers.UserMessage(err))
//	}
//
// # Streaming
//
// Streams issue their request on the first Recv. Cancelling the context or
// calling Close aborts the body read, and a partially decoded event is never
// delivered after cancellation.
package providers
