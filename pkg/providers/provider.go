package providers

import (
	"context"
	"time"
)

// ChatProvider is the capability every provider backend implements.
//
// All methods accept a context.Context for cancellation. Implementations must
// stop network activity promptly when the context is cancelled.
//
// Example usage:
//
//	reply, err := provider.Chat(ctx, "Hello!", history, providers.ChatOptions{})
//	if err != nil {
//	    fmt.Println(providers.UserMessage(err))
//	    return
//	}
//	fmt.Println(reply)
type ChatProvider interface {
	// Name returns the provider identifier.
	Name() Name

	// Chat sends content after history and returns the whole reply.
	// Rate-limited requests are retried locally; every other failure is
	// returned immediately as a *ProviderError.
	Chat(ctx context.Context, content string, history []Message, opts ChatOptions) (string, error)

	// ChatStream returns a lazy stream of reply chunks. No request is issued
	// until the first Recv.
	//
	//  stream := provider.ChatStream(ctx, "Hello!", history, opts)
	//  defer stream.Close()
	//  for {
	//      chunk, err := stream.Recv()
	//      if err == io.EOF {
	//          break
	//      }
	//      if err != nil {
	//          return err
	//      }
	//      fmt.Print(chunk)
	//  }
	ChatStream(ctx context.Context, content string, history []Message, opts ChatOptions) Stream
}

// Stream is a finite, non-restartable sequence of reply chunks.
type Stream interface {
	// Recv returns the next chunk. It returns io.EOF when the stream ends
	// normally and a *ProviderError otherwise. After an error every further
	// call returns the same error.
	Recv() (string, error)

	// Close releases the underlying connection. It is safe to call more than
	// once and from a goroutine other than the one calling Recv.
	Close() error
}

// HealthChecker is implemented by providers that can verify reachability
// and credentials without issuing a chat request.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthReporter exposes the health tracked from real traffic.
type HealthReporter interface {
	GetHealth() ProviderHealth
}

// Observer receives provider traffic events. Implementations must be safe
// for concurrent use.
type Observer interface {
	// ObserveRequest is called once per upstream attempt.
	ObserveRequest(provider Name, model string, duration time.Duration, err error)

	// ObserveRetry is called before sleeping for a rate-limit retry.
	ObserveRetry(provider Name, attempt int, delay time.Duration)

	// ObserveStreamChunk is called for every chunk delivered to a caller.
	ObserveStreamChunk(provider Name)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ObserveRequest(Name, string, time.Duration, error) {}
func (NopObserver) ObserveRetry(Name, int, time.Duration)             {}
func (NopObserver) ObserveStreamChunk(Name)                           {}
