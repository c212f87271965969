package anthropic

import (
	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
)

const (
	messagesPath     = "/messages"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 2000

	eventContentDelta = "content_block_delta"
	eventMessageStop  = "message_stop"
)

// Variant returns the Anthropic Messages API variant.
func Variant() provider.Variant {
	return provider.Variant{
		Name:  "anthropic",
		Shape: shapeMessages,
		NewDecoder: func(obs stream.Observer) stream.Decoder {
			return stream.NewTypedSSE(eventContentDelta, "delta.text", eventMessageStop, obs)
		},
	}
}

type messagePayload struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func shapeMessages(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	payload := messagePayload{
		Model:     turn.Model,
		Messages:  make([]message, 0, len(turn.Messages)),
		MaxTokens: defaultMaxTokens,
		Stream:    true,
	}

	systemSeen := false
	for _, msg := range turn.Messages {
		if msg.Role == models.RoleSystem {
			// Only the first system message is hoisted.
			if !systemSeen {
				payload.System = msg.Content
				systemSeen = true
			}
			continue
		}
		payload.Messages = append(payload.Messages, message{Role: msg.Role, Content: msg.Content})
	}

	req, err := provider.NewJSONRequest(ep.BaseURL+messagesPath, payload)
	if err != nil {
		return provider.Request{}, err
	}
	req.Header.Set("x-api-key", ep.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
