package ollama

import (
	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
)

const chatPath = "/api/chat"

// Variant returns the variant for a local Ollama server. Ollama needs no
// credentials and receives the message history unfiltered.
func Variant() provider.Variant {
	return provider.Variant{
		Name:  "ollama",
		Shape: shapeChat,
		NewDecoder: func(obs stream.Observer) stream.Decoder {
			return stream.NewNDJSON("message.content", "done", obs)
		},
	}
}

type chatPayload struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func shapeChat(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	msgs := make([]message, 0, len(turn.Messages))
	for _, msg := range turn.Messages {
		msgs = append(msgs, message{Role: msg.Role, Content: msg.Content})
	}

	req, err := provider.NewJSONRequest(ep.BaseURL+chatPath, chatPayload{
		Model:    turn.Model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return provider.Request{}, err
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
