package huggingface

import (
	"fmt"
	"strings"

	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
)

const (
	defaultMaxNewTokens = 2000
	defaultTemperature  = 0.7
)

// Variant returns the Hugging Face inference endpoint variant. The whole
// conversation is flattened into one prompt.
func Variant() provider.Variant {
	return provider.Variant{
		Name:  "huggingface",
		Shape: shapeInference,
		NewDecoder: func(obs stream.Observer) stream.Decoder {
			return stream.NewBareBody(obs, "generated_text", "token.text")
		},
	}
}

type inferencePayload struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
	Stream     bool       `json:"stream"`
}

type parameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

func shapeInference(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	lines := make([]string, 0, len(turn.Messages))
	for _, msg := range turn.Messages {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}

	req, err := provider.NewJSONRequest(ep.BaseURL+"/"+turn.Model, inferencePayload{
		Inputs: strings.Join(lines, "\n"),
		Parameters: parameters{
			MaxNewTokens: defaultMaxNewTokens,
			Temperature:  defaultTemperature,
		},
		Stream: true,
	})
	if err != nil {
		return provider.Request{}, err
	}
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
