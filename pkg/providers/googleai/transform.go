package googleai

import (
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/parley/pkg/providers"
)

// generateRequest is the body of generateContent and streamGenerateContent.
type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// content is one turn of the conversation.
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generationConfig carries sampling parameters.
type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
}

// generateResponse is a full response, and also the shape of each SSE
// payload when streaming.
type generateResponse struct {
	Candidates     []candidate          `json:"candidates"`
	PromptFeedback *promptFeedback      `json:"promptFeedback,omitempty"`
	UsageMetadata  *usageMetadata       `json:"usageMetadata,omitempty"`
	Error          *providers.WireError `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Gemini names the assistant role "model" and takes system prompts out of
// band.
const (
	roleUser  = "user"
	roleModel = "model"
)

// transformRequest builds the wire request for content following history.
// System messages are folded into systemInstruction.
func transformRequest(cfg providers.ProviderConfig, text string, history []providers.Message, opts providers.ChatOptions) *generateRequest {
	temperature, maxTokens, topP := cfg.Sampling(opts)

	req := &generateRequest{
		GenerationConfig: &generationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: maxTokens,
			TopP:            topP,
		},
	}

	var system []part
	for _, m := range providers.Conversation(history, text) {
		switch m.Role {
		case providers.RoleSystem:
			system = append(system, part{Text: m.Content})
		case providers.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: roleModel, Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: roleUser, Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: system}
	}

	return req
}

// transformResponse extracts the reply text of the first candidate.
func transformResponse(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response")
	}
	return candidateText(resp.Candidates[0]), nil
}

func candidateText(c candidate) string {
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// decodeStreamChunk extracts the text of one SSE payload. Trailing payloads
// that carry only usage metadata yield an empty string. Gemini reports a
// failure mid-stream as {"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}},
// which yields a *providers.ProviderError.
func decodeStreamChunk(data []byte) (string, error) {
	var chunk generateResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", fmt.Errorf("failed to parse stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", providers.FrameError("", chunk.Error)
	}
	if len(chunk.Candidates) == 0 {
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", chunk.PromptFeedback.BlockReason)
		}
		return "", nil
	}
	return candidateText(chunk.Candidates[0]), nil
}
