package anthropic

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/models"
	"chatrelay/internal/provider"
)

func TestShape_HoistsSystem(t *testing.T) {
	turn := models.ChatTurn{
		ProviderID: "anthropic",
		Model:      "claude-3-5-sonnet-latest",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "You are terse."},
			{Role: models.RoleSystem, Content: "Second system."},
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
			{Role: models.RoleUser, Content: "bye"},
		},
	}

	req, err := Variant().Shape(turn, provider.Endpoint{
		BaseURL: "https://api.anthropic.com/v1",
		APIKey:  "ant-key",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.URL)
	assert.Equal(t, http.Header{
		"Content-Type":      {"application/json"},
		"X-Api-Key":         {"ant-key"},
		"Anthropic-Version": {"2023-06-01"},
	}, req.Header)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.JSONEq(t, `{
		"model": "claude-3-5-sonnet-latest",
		"system": "You are terse.",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
			{"role": "user", "content": "bye"}
		],
		"max_tokens": 2000,
		"stream": true
	}`, string(req.Body))
}

func TestShape_NoSystemOmitsField(t *testing.T) {
	turn := models.ChatTurn{
		Model:    "claude-3-haiku-20240307",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}

	req, err := Variant().Shape(turn, provider.Endpoint{BaseURL: "https://api.anthropic.com/v1", APIKey: "k"})
	require.NoError(t, err)
	assert.NotContains(t, string(req.Body), `"system"`)
}

func TestDecoder_ContentBlockDeltas(t *testing.T) {
	dec := Variant().NewDecoder(nil)
	deltas, done := dec.Decode([]byte(
		"event: content_block_delta\n" +
			"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
			"event: message_stop\n" +
			"data: {\"type\":\"message_stop\"}\n\n",
	))
	assert.True(t, done)
	assert.Equal(t, []models.Delta{{Text: "Hi"}}, deltas)
}
