package routing

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"mercator-hq/parley/pkg/providers"
)

var errStreamClosed = errors.New("stream closed")

// failoverStream wraps a provider stream and restarts it on the fallback
// provider if it fails before delivering anything.
type failoverStream struct {
	o       *Orchestrator
	ctx     context.Context
	content string
	history []providers.Message
	opts    providers.ChatOptions

	// mu guards the fields below; Close may race with Recv.
	mu       sync.Mutex
	current  providers.Stream
	provider providers.Name
	target   providers.Name
	closed   bool

	delivered bool
	hopped    bool
	err       error

	// recorded is set once the outcome has been counted in the stats
	recorded atomic.Bool
}

// Recv implements providers.Stream.
func (s *failoverStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}

	for {
		chunk, name, err := s.next()
		if err == nil {
			s.delivered = true
			return chunk, nil
		}
		if err == io.EOF {
			return "", s.finish(io.EOF)
		}
		if s.delivered || s.hopped {
			return "", s.finish(err)
		}

		fallback, ok := s.o.failoverFrom(name, err)
		if !ok {
			return "", s.finish(err)
		}
		s.hopped = true
		s.restart(fallback)
	}
}

// next receives from the current stream, opening one on the active
// provider first if needed.
func (s *failoverStream) next() (string, providers.Name, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", "", errStreamClosed
	}
	if s.current == nil {
		s.provider = s.target
		if s.provider == "" {
			s.provider = s.o.ActiveProvider()
		}
		provider, err := s.o.registry.Get(s.provider)
		if err != nil {
			name := s.provider
			s.mu.Unlock()
			return "", name, err
		}
		s.o.stats.incrementProvider(s.provider)
		s.current = provider.ChatStream(s.ctx, s.content, s.history, s.opts)
	}
	stream, name := s.current, s.provider
	s.mu.Unlock()

	chunk, err := stream.Recv()
	return chunk, name, err
}

// restart drops the failed stream so the next receive opens one on name.
func (s *failoverStream) restart(name providers.Name) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
	s.target = name
	s.o.logger.Info("restarting stream on fallback provider", "provider", name)
}

func (s *failoverStream) finish(err error) error {
	s.err = err
	switch {
	case err == io.EOF:
		s.record(nil)
	case errors.Is(err, errStreamClosed):
	default:
		if s.record(err) {
			s.o.logFailure(err)
		}
	}
	return err
}

// record counts the stream's outcome once and reports whether this call
// did so.
func (s *failoverStream) record(err error) bool {
	if !s.recorded.CompareAndSwap(false, true) {
		return false
	}
	s.o.stats.recordResult(err)
	return true
}

// Close implements providers.Stream.
func (s *failoverStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	// Closing before the end of the stream abandons the request.
	s.record(&providers.ProviderError{Provider: s.provider, Kind: providers.KindCancelled, Message: "stream closed"})
	if s.current != nil {
		return s.current.Close()
	}
	return nil
}
