package google

import (
	"fmt"
	"net/url"

	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
)

const (
	roleModel = "model"
	roleUser  = "user"
)

// Variant returns the Gemini generateContent streaming variant.
func Variant() provider.Variant {
	return provider.Variant{
		Name:  "google",
		Shape: shapeGenerate,
		NewDecoder: func(obs stream.Observer) stream.Decoder {
			return stream.NewNDJSON("candidates.0.content.parts.0.text", "", obs)
		},
	}
}

type generatePayload struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

func shapeGenerate(turn models.ChatTurn, ep provider.Endpoint) (provider.Request, error) {
	contents := make([]content, 0, len(turn.Messages))
	for _, msg := range turn.Messages {
		if msg.Role == models.RoleSystem {
			continue
		}
		role := roleUser
		if msg.Role == models.RoleAssistant {
			role = roleModel
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s",
		ep.BaseURL, url.PathEscape(turn.Model), url.QueryEscape(ep.APIKey))

	req, err := provider.NewJSONRequest(endpoint, generatePayload{Contents: contents})
	if err != nil {
		return provider.Request{}, err
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
