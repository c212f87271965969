package openai

import (
	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
)

const (
	chatPath   = "/chat/completions"
	chatV2Path = "/text/chatcompletion_v2"

	defaultTemperature = 0.7
	defaultMaxTokens   = 2000

	contentPath = "choices.0.delta.content"
)

// Compatible returns the variant for OpenAI-compatible chat completion APIs.
// It is also the fallback for providers without a dedicated variant.
func Compatible() provider.Variant {
	return provider.Variant{
		Name:       "openai",
		Shape:      shapeChat,
		NewDecoder: newDecoder,
	}
}

// ChatCompletionV2 returns the variant for MiniMax's chatcompletion_v2 API,
// which speaks the OpenAI stream format on a different path.
func ChatCompletionV2() provider.Variant {
	return provider.Variant{
		Name:       "chatcompletion_v2",
		Shape:      shapeChatV2,
		NewDecoder: newDecoder,
	}
}

func newDecoder(obs stream.Observer) stream.Decoder {
	return stream.NewSSE(contentPath, obs)
}

type chatPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func shapeChat(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	return newRequest(ep, chatPath, chatPayload{
		Model:       turn.Model,
		Messages:    buildMessages(turn.Messages),
		Stream:      true,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
}

func shapeChatV2(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	return newRequest(ep, chatV2Path, chatPayload{
		Model:       turn.Model,
		Messages:    buildMessages(turn.Messages),
		Stream:      true,
		Temperature: defaultTemperature,
	})
}

func newRequest(ep provider.Endpoint, path string, payload chatPayload) (provider.Request, error) {
	req, err := provider.NewJSONRequest(ep.BaseURL+path, payload)
	if err != nil {
		return provider.Request{}, err
	}

	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// buildMessages drops system messages that carry no content.
func buildMessages(msgs []models.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == models.RoleSystem && msg.Content == "" {
			continue
		}
		out = append(out, openAIMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}
