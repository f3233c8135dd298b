package routing

import (
	"context"
	"errors"
	"io"
	"sync"

	"mercator-hq/parley/pkg/providers"
)

// ChatResult is one scripted outcome of MockProvider.Chat.
type ChatResult struct {
	Reply string
	Err   error
}

// StreamScript is one scripted stream: Chunks are delivered in order, then
// Err (io.EOF when nil).
type StreamScript struct {
	Chunks []string
	Err    error
}

// MockProvider is a scripted providers.ChatProvider for orchestrator tests.
// Scripts are consumed per call; the last one repeats.
type MockProvider struct {
	name providers.Name

	mu          sync.Mutex
	chats       []ChatResult
	streams     []StreamScript
	chatCalls   int
	streamOpens int
	lastContent string
	lastHistory []providers.Message
	health      providers.ProviderHealth
	closed      bool
}

// NewMockProvider creates a healthy mock that answers "mock response".
func NewMockProvider(name providers.Name) *MockProvider {
	return &MockProvider{
		name:    name,
		chats:   []ChatResult{{Reply: "mock response"}},
		streams: []StreamScript{{Chunks: []string{"mock ", "response"}}},
		health:  providers.ProviderHealth{IsHealthy: true},
	}
}

// SetChat scripts the results of successive Chat calls.
func (m *MockProvider) SetChat(results ...ChatResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = results
}

// SetStream scripts the streams returned by successive ChatStream calls.
func (m *MockProvider) SetStream(scripts ...StreamScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = scripts
}

// SetHealthy sets the reported health status.
func (m *MockProvider) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.IsHealthy = healthy
}

// ChatCalls returns the number of Chat calls.
func (m *MockProvider) ChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls
}

// StreamOpens returns the number of streams that were actually started.
func (m *MockProvider) StreamOpens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamOpens
}

// LastCall returns the content and history of the most recent call.
func (m *MockProvider) LastCall() (string, []providers.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContent, m.lastHistory
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Name implements providers.ChatProvider.
func (m *MockProvider) Name() providers.Name {
	return m.name
}

// Chat implements providers.ChatProvider.
func (m *MockProvider) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", providers.RequestError(ctx, m.name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chatCalls++
	m.lastContent, m.lastHistory = content, history

	result := m.chats[0]
	if len(m.chats) > 1 {
		m.chats = m.chats[1:]
	}
	return result.Reply, result.Err
}

// ChatStream implements providers.ChatProvider. The script is picked when
// the first chunk is requested.
func (m *MockProvider) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	return &mockStream{ctx: ctx, provider: m, content: content, history: history}
}

func (m *MockProvider) nextStream(content string, history []providers.Message) StreamScript {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.streamOpens++
	m.lastContent, m.lastHistory = content, history

	script := m.streams[0]
	if len(m.streams) > 1 {
		m.streams = m.streams[1:]
	}
	return script
}

// GetHealth implements providers.HealthReporter.
func (m *MockProvider) GetHealth() providers.ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// HealthCheck implements providers.HealthChecker.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	if !m.GetHealth().IsHealthy {
		return &providers.ProviderError{Provider: m.name, Kind: providers.KindTransport, Message: "unhealthy"}
	}
	return nil
}

// Close marks the provider closed.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockStream struct {
	ctx      context.Context
	provider *MockProvider
	content  string
	history  []providers.Message

	mu      sync.Mutex
	started bool
	script  StreamScript
	next    int
	closed  bool
}

var errStreamClosed = errors.New("stream closed")

func (s *mockStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errStreamClosed
	}
	if err := s.ctx.Err(); err != nil {
		return "", providers.RequestError(s.ctx, s.provider.name, err)
	}
	if !s.started {
		s.started = true
		s.script = s.provider.nextStream(s.content, s.history)
	}
	if s.next < len(s.script.Chunks) {
		chunk := s.script.Chunks[s.next]
		s.next++
		return chunk, nil
	}
	if s.script.Err != nil {
		return "", s.script.Err
	}
	return "", io.EOF
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
