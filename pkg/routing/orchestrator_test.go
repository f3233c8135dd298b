package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	mockrouting "mercator-hq/parley/internal/routing"
	"mercator-hq/parley/pkg/providerfactory"
	"mercator-hq/parley/pkg/providers"
)

func rateLimited(name providers.Name) error {
	return &providers.ProviderError{Provider: name, Kind: providers.KindRateLimited, StatusCode: 429, Message: "Rate limit exceeded"}
}

func newTestOrchestrator(t *testing.T, failover bool) (*Orchestrator, *mockrouting.MockProvider, *mockrouting.MockProvider) {
	t.Helper()

	primary := mockrouting.NewMockProvider(providers.GoogleAI)
	fallback := mockrouting.NewMockProvider(providers.DeepSeek)

	reg := providerfactory.NewRegistry()
	reg.Register(providers.GoogleAI, func() (providers.ChatProvider, error) { return primary, nil })
	reg.Register(providers.DeepSeek, func() (providers.ChatProvider, error) { return fallback, nil })

	o, err := New(reg, Options{
		Default:         providers.GoogleAI,
		Fallback:        providers.DeepSeek,
		FailoverEnabled: failover,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return o, primary, fallback
}

func recordSwitches(o *Orchestrator) func() []SwitchEvent {
	var (
		mu     sync.Mutex
		events []SwitchEvent
	)
	o.OnSwitch(func(e SwitchEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	return func() []SwitchEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]SwitchEvent(nil), events...)
	}
}

func drain(t *testing.T, s providers.Stream) ([]string, error) {
	t.Helper()
	defer s.Close()

	var chunks []string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

func TestNew(t *testing.T) {
	reg := providerfactory.NewRegistry()
	reg.Register(providers.GoogleAI, func() (providers.ChatProvider, error) {
		return mockrouting.NewMockProvider(providers.GoogleAI), nil
	})

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "unregistered default",
			opts:    Options{Default: providers.OpenAI},
			wantErr: providerfactory.ErrNotFound,
		},
		{
			name:    "unregistered fallback",
			opts:    Options{Default: providers.GoogleAI, Fallback: providers.DeepSeek, FailoverEnabled: true},
			wantErr: providerfactory.ErrNotFound,
		},
		{
			name:    "failover without fallback",
			opts:    Options{Default: providers.GoogleAI, FailoverEnabled: true},
			wantErr: ErrNoFallback,
		},
		{
			name: "fallback ignored when failover is off",
			opts: Options{Default: providers.GoogleAI, Fallback: providers.DeepSeek},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := New(reg, tt.opts)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if o.ActiveProvider() != tt.opts.Default {
					t.Errorf("expected active %s, got %s", tt.opts.Default, o.ActiveProvider())
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOrchestrator_ChatSuccess(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t, true)
	events := recordSwitches(o)
	primary.SetChat(mockrouting.ChatResult{Reply: "from primary"})

	history := []providers.Message{providers.NewMessage(providers.RoleUser, "earlier")}
	reply, err := o.Chat(context.Background(), "hi", history, providers.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if reply != "from primary" {
		t.Errorf("expected primary reply, got %q", reply)
	}
	if o.ActiveProvider() != providers.GoogleAI {
		t.Errorf("success must not change the active provider, got %s", o.ActiveProvider())
	}
	if fallback.ChatCalls() != 0 {
		t.Error("fallback must not be called on success")
	}
	if len(events()) != 0 {
		t.Errorf("expected no switch events, got %v", events())
	}

	content, got := primary.LastCall()
	if content != "hi" || len(got) != 1 || got[0].Content != "earlier" {
		t.Errorf("unexpected call: %q %v", content, got)
	}
	if len(history) != 1 {
		t.Error("caller history was modified")
	}
}

func TestOrchestrator_ChatFailover(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t, true)
	events := recordSwitches(o)

	cause := rateLimited(providers.GoogleAI)
	primary.SetChat(mockrouting.ChatResult{Err: cause})
	fallback.SetChat(mockrouting.ChatResult{Reply: "from fallback"})

	reply, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if reply != "from fallback" {
		t.Errorf("expected fallback reply, got %q", reply)
	}
	if o.ActiveProvider() != providers.DeepSeek {
		t.Errorf("expected deepseek active after failover, got %s", o.ActiveProvider())
	}

	got := events()
	if len(got) != 1 {
		t.Fatalf("expected one switch event, got %d", len(got))
	}
	e := got[0]
	if e.From != providers.GoogleAI || e.To != providers.DeepSeek || e.Reason != ReasonFailover || e.Cause != cause {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.At.IsZero() {
		t.Error("event time not set")
	}

	stats := o.Stats()
	if stats.TotalRequests != 1 || stats.Failovers != 1 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.RequestsPerProvider[providers.GoogleAI] != 1 || stats.RequestsPerProvider[providers.DeepSeek] != 1 {
		t.Errorf("unexpected per-provider counts: %v", stats.RequestsPerProvider)
	}

	// The next call goes straight to the fallback.
	if _, err := o.Chat(context.Background(), "again", nil, providers.ChatOptions{}); err != nil {
		t.Fatalf("second Chat() failed: %v", err)
	}
	if primary.ChatCalls() != 1 || fallback.ChatCalls() != 2 {
		t.Errorf("expected calls 1/2, got %d/%d", primary.ChatCalls(), fallback.ChatCalls())
	}
}

func TestOrchestrator_ChatNoFailover(t *testing.T) {
	tests := []struct {
		name     string
		failover bool
		err      error
	}{
		{"failover disabled", false, rateLimited(providers.GoogleAI)},
		{"unauthorized", true, &providers.ProviderError{Provider: providers.GoogleAI, Kind: providers.KindUnauthorized, StatusCode: 401}},
		{"malformed", true, &providers.ProviderError{Provider: providers.GoogleAI, Kind: providers.KindMalformed}},
		{"cancelled", true, &providers.ProviderError{Provider: providers.GoogleAI, Kind: providers.KindCancelled, Cause: context.Canceled}},
		{"plain transport", true, &providers.ProviderError{Provider: providers.GoogleAI, Kind: providers.KindTransport, StatusCode: 500, Message: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, primary, fallback := newTestOrchestrator(t, tt.failover)
			primary.SetChat(mockrouting.ChatResult{Err: tt.err})

			_, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
			if err != tt.err {
				t.Errorf("expected the original error unchanged, got %v", err)
			}
			if o.ActiveProvider() != providers.GoogleAI {
				t.Errorf("expected googleai to stay active, got %s", o.ActiveProvider())
			}
			if fallback.ChatCalls() != 0 {
				t.Error("fallback must not be called")
			}
		})
	}
}

func TestOrchestrator_ChatSingleHop(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t, true)
	primary.SetChat(mockrouting.ChatResult{Err: rateLimited(providers.GoogleAI)})
	fallbackErr := rateLimited(providers.DeepSeek)
	fallback.SetChat(mockrouting.ChatResult{Err: fallbackErr})

	_, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	if err != fallbackErr {
		t.Fatalf("expected fallback error, got %v", err)
	}
	if primary.ChatCalls() != 1 || fallback.ChatCalls() != 1 {
		t.Errorf("expected exactly one call each, got %d/%d", primary.ChatCalls(), fallback.ChatCalls())
	}

	// Already on the fallback: errors propagate without another switch.
	_, err = o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	if err != fallbackErr {
		t.Fatalf("expected fallback error, got %v", err)
	}
	if primary.ChatCalls() != 1 {
		t.Error("failover must not go back to the primary")
	}
	if o.Stats().Failovers != 1 || o.Stats().Errors != 2 {
		t.Errorf("unexpected stats: %+v", o.Stats())
	}
}

func TestOrchestrator_ChatHeuristicFailover(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t, true)
	primary.SetChat(mockrouting.ChatResult{Err: fmt.Errorf("googleai: RESOURCE_EXHAUSTED: quota exceeded")})
	fallback.SetChat(mockrouting.ChatResult{Reply: "ok"})

	reply, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	if err != nil || reply != "ok" {
		t.Fatalf("expected failover on quota message, got %q, %v", reply, err)
	}
}

func TestOrchestrator_ConstructionError(t *testing.T) {
	reg := providerfactory.NewRegistry()
	reg.Register(providers.GoogleAI, func() (providers.ChatProvider, error) {
		return nil, &providers.ConfigError{Provider: providers.GoogleAI, Field: "api_key", Message: "API key is required"}
	})
	fallback := mockrouting.NewMockProvider(providers.DeepSeek)
	reg.Register(providers.DeepSeek, func() (providers.ChatProvider, error) { return fallback, nil })

	o, err := New(reg, Options{Default: providers.GoogleAI, Fallback: providers.DeepSeek, FailoverEnabled: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if fallback.ChatCalls() != 0 {
		t.Error("a missing credential must not fail over")
	}
}

func TestOrchestrator_SetProvider(t *testing.T) {
	o, _, fallback := newTestOrchestrator(t, true)
	events := recordSwitches(o)

	err := o.SetProvider(providers.OpenAI)
	if !errors.Is(err, providerfactory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if o.ActiveProvider() != providers.GoogleAI {
		t.Error("failed SetProvider changed the active provider")
	}

	if err := o.SetProvider(providers.DeepSeek); err != nil {
		t.Fatalf("SetProvider() failed: %v", err)
	}
	if o.ActiveProvider() != providers.DeepSeek {
		t.Errorf("expected deepseek, got %s", o.ActiveProvider())
	}

	// Setting the active provider again is not a switch.
	if err := o.SetProvider(providers.DeepSeek); err != nil {
		t.Fatalf("SetProvider() failed: %v", err)
	}

	got := events()
	if len(got) != 1 || got[0].Reason != ReasonExplicit || got[0].From != providers.GoogleAI || got[0].Cause != nil {
		t.Errorf("unexpected events: %+v", got)
	}
	if o.Stats().ExplicitSwitches != 1 {
		t.Errorf("expected one explicit switch, got %d", o.Stats().ExplicitSwitches)
	}

	if _, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{}); err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if fallback.ChatCalls() != 1 {
		t.Error("expected the explicitly selected provider to be used")
	}
}

func TestOrchestrator_Accessors(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, true)

	if o.FallbackProvider() != providers.DeepSeek {
		t.Errorf("expected deepseek fallback, got %s", o.FallbackProvider())
	}
	if !o.FailoverEnabled() {
		t.Error("expected failover enabled")
	}
	got := o.AvailableProviders()
	if len(got) != 2 || got[0] != providers.DeepSeek || got[1] != providers.GoogleAI {
		t.Errorf("expected sorted [deepseek googleai], got %v", got)
	}
}

func TestOrchestrator_ConcurrentFailover(t *testing.T) {
	o, primary, fallback := newTestOrchestrator(t, true)
	primary.SetChat(mockrouting.ChatResult{Err: rateLimited(providers.GoogleAI)})
	fallback.SetChat(mockrouting.ChatResult{Reply: "ok"})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Chat(context.Background(), "hi", nil, providers.ChatOptions{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if o.ActiveProvider() != providers.DeepSeek {
		t.Errorf("expected deepseek active, got %s", o.ActiveProvider())
	}
	if stats := o.Stats(); stats.TotalRequests != 16 {
		t.Errorf("expected 16 requests, got %d", stats.TotalRequests)
	}
}

func TestOrchestrator_ResetStats(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, true)
	_, _ = o.Chat(context.Background(), "hi", nil, providers.ChatOptions{})

	o.ResetStats()
	stats := o.Stats()
	if stats.TotalRequests != 0 || len(stats.RequestsPerProvider) != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}
