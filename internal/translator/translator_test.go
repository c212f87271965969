package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/models"
)

func TestChatRequest_ToTurn(t *testing.T) {
	var req ChatRequest
	err := json.Unmarshal([]byte(`{
		"messages": [{"role": "User", "content": "hi", "timestamp": 1700000000000}],
		"provider": " ollama ",
		"model": "llama3",
		"config": {"apiKey": " k ", "baseUrl": "http://gpu:11434"}
	}`), &req)
	require.NoError(t, err)

	turn := req.ToTurn("turn-1")
	assert.Equal(t, "turn-1", turn.ID)
	assert.Equal(t, "ollama", turn.ProviderID)
	assert.Equal(t, "llama3", turn.Model)
	assert.Equal(t, models.ProviderConfig{APIKey: "k", BaseURL: "http://gpu:11434"}, turn.Config)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, models.RoleUser, turn.Messages[0].Role)
	require.NotNil(t, turn.Messages[0].Timestamp)
	assert.Equal(t, float64(1700000000000), *turn.Messages[0].Timestamp)
}

func TestChatRequest_FractionalTimestamp(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"messages": [
			{"role": "user", "content": "hi", "timestamp": 1700000000000.5},
			{"role": "assistant", "content": "hello"}
		],
		"provider": "ollama",
		"model": "llama3"
	}`), &req))

	turn := req.ToTurn("turn-1")
	require.Len(t, turn.Messages, 2)
	require.NotNil(t, turn.Messages[0].Timestamp)
	assert.Equal(t, 1700000000000.5, *turn.Messages[0].Timestamp)
	assert.Nil(t, turn.Messages[1].Timestamp)
}

func TestChatRequest_MissingConfig(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"messages":[],"provider":"x","model":"y"}`), &req))
	assert.Equal(t, models.ProviderConfig{}, req.Config)

	assert.Error(t, json.Unmarshal([]byte(`{"messages":"nope"}`), &req))
}

func TestEncodeDelta(t *testing.T) {
	frame, err := EncodeDelta(`say "<hi>" & go`)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"choices\":[{\"delta\":{\"content\":\"say \\\"<hi>\\\" & go\"}}]}\n\n", string(frame))
	assert.Equal(t, "data: [DONE]\n\n", string(DoneFrame))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&UpstreamError{Provider: "openai", StatusCode: 401, Body: "bad key"}, InvalidAPIKey},
		{fmt.Errorf("open upstream: %w", &UpstreamError{Provider: "x", StatusCode: 402}), PaymentRequired},
		{&UpstreamError{Provider: "x", StatusCode: 429}, RateLimited},
		{&UpstreamError{Provider: "x", StatusCode: 500}, ProviderUnavailable},
		{&UpstreamError{Provider: "x", StatusCode: 503, Body: "mentions 401 in body"}, UnknownStreamError},
		{errors.New("API error: 429 - slow down"), RateLimited},
		{errors.New("dial tcp: connection refused"), UnknownStreamError},
		{errors.New("port 4010 closed"), UnknownStreamError},
		{nil, UnknownStreamError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestStreamErrorMessage(t *testing.T) {
	msg := StreamErrorMessage(&UpstreamError{Provider: "openai", StatusCode: 401})
	assert.Equal(t, "❌ Error: Invalid API key. Please check your API key in Settings.", msg)

	msg = StreamErrorMessage(errors.New("connection reset by peer"))
	assert.Equal(t, "❌ Error: connection reset by peer", msg)

	assert.Equal(t, "❌ Error: Unknown error occurred", StreamErrorMessage(nil))
	assert.Equal(t, "rate_limited", RateLimited.String())
}
