package deepseek

import (
	"encoding/json"
	"fmt"

	"mercator-hq/parley/pkg/providers"
)

// DeepSeek speaks the OpenAI chat completions wire format.

// chatRequest represents a chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage represents a message in wire format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents a chat completion response.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage represents token usage.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamResponse represents a chunk in the SSE stream. An upstream failure
// after the stream was accepted arrives as a payload carrying only Error.
type streamResponse struct {
	ID      string               `json:"id"`
	Choices []streamChoice       `json:"choices"`
	Usage   *chatUsage           `json:"usage,omitempty"`
	Error   *providers.WireError `json:"error,omitempty"`
}

// streamChoice represents a choice in a stream chunk.
type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// streamDelta represents the incremental content in a stream chunk.
type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// transformRequest builds the wire request for content following history.
func transformRequest(cfg providers.ProviderConfig, content string, history []providers.Message, opts providers.ChatOptions, stream bool) *chatRequest {
	temperature, maxTokens, topP := cfg.Sampling(opts)

	msgs := providers.Conversation(history, content)
	req := &chatRequest{
		Model:       cfg.Model,
		Messages:    make([]chatMessage, len(msgs)),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
		Stream:      stream,
	}
	for i, m := range msgs {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return req
}

// transformResponse extracts the reply text.
func transformResponse(resp *chatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeStreamChunk extracts the delta text of one SSE payload. Chunks that
// carry no choices (usage trailers and keep-alives) yield an empty string;
// an error payload yields a *providers.ProviderError.
func decodeStreamChunk(data []byte) (string, error) {
	var chunk streamResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", fmt.Errorf("failed to parse stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", providers.FrameError("", chunk.Error)
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
