package deepseek

import (
	"context"
	"errors"
	"strings"
	"testing"

	testhelpers "mercator-hq/parley/internal/providers"
	"mercator-hq/parley/pkg/providers"
)

func newTestProvider(t *testing.T, mock *testhelpers.MockServer) *Provider {
	t.Helper()
	provider, err := NewProvider(testhelpers.TestConfig(providers.DeepSeek, mock.URL()+"/v1"), nil)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{}, nil)

	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "api_key" {
		t.Errorf("expected api_key field, got %q", cfgErr.Field)
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	provider, err := NewProvider(providers.ProviderConfig{APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	if provider.Name() != providers.DeepSeek {
		t.Errorf("expected name deepseek, got %s", provider.Name())
	}
	if provider.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", provider.baseURL)
	}
	if provider.Config().Model != DefaultModel {
		t.Errorf("expected default model, got %s", provider.Config().Model)
	}
}

func TestDeepSeekProvider_Chat(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockChatCompletion("Hello, world!", "deepseek-chat"),
	})

	provider := newTestProvider(t, mock)

	reply, err := provider.Chat(context.Background(), "How are you?", testhelpers.TestHistory(), providers.ChatOptions{})
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, reply, "Hello, world!")

	req, ok := mock.LastRequest()
	if !ok {
		t.Fatal("expected a recorded request")
	}
	if err := testhelpers.ExpectHeader(req, "Authorization", "Bearer test-key"); err != nil {
		t.Error(err)
	}

	msgs, err := testhelpers.ExpectJSONField(req, "messages")
	testhelpers.AssertNoError(t, err)
	list := msgs.([]interface{})
	if len(list) != 4 {
		t.Fatalf("expected history plus the new turn, got %d messages", len(list))
	}
	last := list[3].(map[string]interface{})
	if last["role"] != "user" || last["content"] != "How are you?" {
		t.Errorf("unexpected final message: %v", last)
	}
}

func TestDeepSeekProvider_ChatOptionsOverrideConfig(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		Body: testhelpers.MockChatCompletion("ok", "deepseek-chat"),
	})

	provider := newTestProvider(t, mock)

	temp := 0.1
	maxTokens := 42
	_, err := provider.Chat(context.Background(), "hi", nil, providers.ChatOptions{Temperature: &temp, MaxTokens: &maxTokens})
	testhelpers.AssertNoError(t, err)

	req, _ := mock.LastRequest()
	got, _ := testhelpers.ExpectJSONField(req, "temperature")
	testhelpers.AssertEqual(t, got, 0.1)
	got, _ = testhelpers.ExpectJSONField(req, "max_tokens")
	testhelpers.AssertEqual(t, got, float64(42))
	got, _ = testhelpers.ExpectJSONField(req, "top_p")
	testhelpers.AssertEqual(t, got, 0.9)
}

func TestDeepSeekProvider_RateLimitRetriedThenSucceeds(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetSequence("/v1/chat/completions",
		testhelpers.MockRateLimitError(1),
		testhelpers.MockResponse{Body: testhelpers.MockChatCompletion("finally", "deepseek-chat")},
	)

	provider := newTestProvider(t, mock)

	reply, err := provider.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, reply, "finally")
	testhelpers.AssertEqual(t, mock.GetRequestCount(), 2)
}

func TestDeepSeekProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response testhelpers.MockResponse
		kind     providers.Kind
		requests int
	}{
		{"unauthorized", testhelpers.MockAuthError(), providers.KindUnauthorized, 1},
		{"server error", testhelpers.MockServerError(), providers.KindTransport, 1},
		{"rate limit exhausted", testhelpers.MockRateLimitError(1), providers.KindRateLimited, 3},
		{"malformed body", testhelpers.MockResponse{Body: "{not json"}, providers.KindMalformed, 1},
		{"no choices", testhelpers.MockResponse{Body: map[string]interface{}{"choices": []interface{}{}}}, providers.KindMalformed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", tt.response)

			provider := newTestProvider(t, mock)

			_, err := provider.Chat(context.Background(), "hi", nil, providers.ChatOptions{})
			testhelpers.AssertKind(t, err, tt.kind)
			testhelpers.AssertEqual(t, mock.GetRequestCount(), tt.requests)
		})
	}
}

func TestDeepSeekProvider_ChatStream(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockChatCompletionChunk("Hello", ""),
			testhelpers.MockChatCompletionChunk(", ", ""),
			testhelpers.MockChatCompletionChunk("world", ""),
			testhelpers.MockChatCompletionChunk("", "stop"),
		},
	})

	provider := newTestProvider(t, mock)

	stream := provider.ChatStream(context.Background(), "hi", nil, providers.ChatOptions{})
	if mock.GetRequestCount() != 0 {
		t.Fatal("expected no request before the first Recv")
	}

	chunks, err := testhelpers.CollectStream(t, stream)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, strings.Join(chunks, ""), "Hello, world")
	testhelpers.AssertEqual(t, len(chunks), 3)

	req, _ := mock.LastRequest()
	got, _ := testhelpers.ExpectJSONField(req, "stream")
	testhelpers.AssertEqual(t, got, true)
	if err := testhelpers.ExpectHeader(req, "Accept", "text/event-stream"); err != nil {
		t.Error(err)
	}
}

func TestDeepSeekProvider_ChatStreamError(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockAuthError())

	provider := newTestProvider(t, mock)

	chunks, err := testhelpers.CollectStream(t, provider.ChatStream(context.Background(), "hi", nil, providers.ChatOptions{}))
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
	testhelpers.AssertKind(t, err, providers.KindUnauthorized)
}

func TestDeepSeekProvider_HealthCheck(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/models", testhelpers.MockResponse{Body: map[string]interface{}{"data": []interface{}{}}})

	provider := newTestProvider(t, mock)
	testhelpers.AssertNoError(t, provider.HealthCheck(context.Background()))
}

func TestDecodeStreamChunk(t *testing.T) {
	text, err := decodeStreamChunk([]byte(`{"choices":[],"usage":{"total_tokens":3}}`))
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, text, "")

	if _, err := decodeStreamChunk([]byte(`{broken`)); err == nil {
		t.Error("expected decode error")
	}

	_, err = decodeStreamChunk([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error","code":429}}`))
	testhelpers.AssertKind(t, err, providers.KindRateLimited)
}

func TestDeepSeekProvider_ChatStreamErrorFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  providers.Kind
	}{
		{
			name:  "rate limit",
			frame: testhelpers.MockStreamErrorFrame(429, "rate_limit_error", "Rate limit reached: quota exceeded"),
			kind:  providers.KindRateLimited,
		},
		{
			name:  "server error",
			frame: testhelpers.MockStreamErrorFrame("internal_error", "server_error", "upstream overloaded"),
			kind:  providers.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{StreamChunks: []string{tt.frame}})

			provider := newTestProvider(t, mock)

			chunks, err := testhelpers.CollectStream(t, provider.ChatStream(context.Background(), "hi", nil, providers.ChatOptions{}))
			if len(chunks) != 0 {
				t.Errorf("expected no chunks, got %v", chunks)
			}
			testhelpers.AssertKind(t, err, tt.kind)

			var pe *providers.ProviderError
			if errors.As(err, &pe) && pe.Provider != providers.DeepSeek {
				t.Errorf("expected provider deepseek, got %q", pe.Provider)
			}
		})
	}
}

func TestDeepSeekProvider_ChatStreamErrorAfterChunk(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockChatCompletionChunk("Hel", ""),
			testhelpers.MockStreamErrorFrame(429, "rate_limit_error", "Rate limit reached"),
		},
	})

	provider := newTestProvider(t, mock)

	chunks, err := testhelpers.CollectStream(t, provider.ChatStream(context.Background(), "hi", nil, providers.ChatOptions{}))
	testhelpers.AssertEqual(t, strings.Join(chunks, ""), "Hel")
	testhelpers.AssertKind(t, err, providers.KindRateLimited)
}
