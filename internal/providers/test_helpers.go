package providers

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"mercator-hq/parley/pkg/providers"
)

// TestConfig returns a provider configuration pointed at baseURL with fast
// retries, suitable for adapter tests.
func TestConfig(name providers.Name, baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Model:               "test-model",
		Temperature:         0.5,
		MaxTokens:           256,
		TopP:                0.9,
		MaxRetries:          2,
		RetryDelay:          5 * time.Millisecond,
		Timeout:             5 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// TestHistory returns a short alternating conversation.
func TestHistory() []providers.Message {
	return []providers.Message{
		providers.NewMessage(providers.RoleSystem, "be brief"),
		providers.NewMessage(providers.RoleUser, "hi"),
		providers.NewMessage(providers.RoleAssistant, "hello"),
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertKind fails the test unless err carries the expected error kind.
func AssertKind(t *testing.T, err error, kind providers.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var perr *providers.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if perr.Kind != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, perr.Kind, err)
	}
}

// AssertEqual fails the test if got != expected.
func AssertEqual(t *testing.T, got, expected interface{}) {
	t.Helper()
	if got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

// AssertContains fails the test if haystack doesn't contain needle.
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

// CollectStream drains a stream, returning the chunks seen before the
// first error. io.EOF is not reported as an error.
func CollectStream(t *testing.T, stream providers.Stream) ([]string, error) {
	t.Helper()
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

// WaitForCondition waits for a condition to become true within a timeout.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}

		<-ticker.C
	}
}
