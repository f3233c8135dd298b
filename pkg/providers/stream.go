package providers

import (
	"context"
	"io"
	"sync"
	"time"
)

// ChunkSource yields decoded chunks from an open upstream response.
// Next returns io.EOF at the normal end of the response.
type ChunkSource interface {
	Next() (string, error)
	Close() error
}

// OpenFunc issues the upstream request for a stream. It runs on the first
// Recv, with a context that is cancelled when the stream is closed.
type OpenFunc func(ctx context.Context) (ChunkSource, error)

// lazyStream adapts an OpenFunc to the Stream interface.
type lazyStream struct {
	name   Name
	ctx    context.Context
	cancel context.CancelFunc
	open   OpenFunc
	obs    Observer

	// started and err are only touched by the Recv goroutine
	started bool
	err     error

	mu     sync.Mutex
	src    ChunkSource
	closed bool
}

// NewLazyStream returns a Stream that calls open on the first Recv.
// Cancelling ctx or calling Close aborts the upstream request; a chunk
// decoded after cancellation is dropped.
func NewLazyStream(ctx context.Context, name Name, obs Observer, open OpenFunc) Stream {
	if obs == nil {
		obs = NopObserver{}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &lazyStream{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		open:   open,
		obs:    obs,
	}
}

// Recv implements Stream.
func (s *lazyStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}

	if !s.started {
		s.started = true
		src, err := s.open(s.ctx)
		if err != nil {
			return "", s.fail(err)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			src.Close()
			return "", s.fail(context.Canceled)
		}
		s.src = src
		s.mu.Unlock()
	}

	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return "", s.fail(context.Canceled)
	}

	for {
		chunk, err := src.Next()
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return "", s.fail(ctxErr)
		}
		if err == io.EOF {
			s.err = io.EOF
			s.release()
			return "", io.EOF
		}
		if err != nil {
			return "", s.fail(err)
		}
		if chunk == "" {
			continue
		}
		s.obs.ObserveStreamChunk(s.name)
		return chunk, nil
	}
}

// Close implements Stream.
func (s *lazyStream) Close() error {
	s.mu.Lock()
	s.closed = true
	src := s.src
	s.src = nil
	s.mu.Unlock()

	s.cancel()
	if src != nil {
		return src.Close()
	}
	return nil
}

func (s *lazyStream) fail(err error) error {
	s.err = RequestError(s.ctx, s.name, err)
	s.release()
	return s.err
}

func (s *lazyStream) release() {
	s.mu.Lock()
	src := s.src
	s.src = nil
	s.mu.Unlock()

	if src != nil {
		src.Close()
	}
	s.cancel()
}

// SimulatedSource splits a complete reply into paced chunks of chunkSize
// runes, sleeping delay between chunks.
func SimulatedSource(ctx context.Context, text string, chunkSize int, delay time.Duration) ChunkSource {
	if chunkSize <= 0 {
		chunkSize = len(text) + 1
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return &simulatedSource{ctx: ctx, chunks: chunks, delay: delay}
}

type simulatedSource struct {
	ctx    context.Context
	chunks []string
	next   int
	delay  time.Duration
}

func (s *simulatedSource) Next() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	if s.next > 0 && s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return "", s.ctx.Err()
		case <-timer.C:
		}
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *simulatedSource) Close() error { return nil }
