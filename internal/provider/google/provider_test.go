package google

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/models"
	"chatrelay/internal/provider"
)

func TestShape(t *testing.T) {
	turn := models.ChatTurn{
		ProviderID: "google",
		Model:      "gemini-1.5-flash",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "dropped"},
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
	}

	req, err := Variant().Shape(turn, provider.Endpoint{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		APIKey:  "g-key",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:streamGenerateContent?key=g-key", req.URL)
	assert.Equal(t, http.Header{"Content-Type": {"application/json"}}, req.Header)
	assert.JSONEq(t, `{
		"contents": [
			{"role": "user", "parts": [{"text": "hi"}]},
			{"role": "model", "parts": [{"text": "hello"}]}
		]
	}`, string(req.Body))
}

func TestDecoder(t *testing.T) {
	dec := Variant().NewDecoder(nil)
	deltas, done := dec.Decode([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hi"}],"role":"model"}}]}` + "\n"))
	assert.False(t, done)
	assert.Equal(t, []models.Delta{{Text: "Hi"}}, deltas)
}
