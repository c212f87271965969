package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/config"
	"chatrelay/internal/provider/factory"
	"chatrelay/internal/relay"
)

const testKey = "secret"

func newTestServer(t *testing.T, upstreamURL string, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.APIKey = testKey
	cfg.Providers = []config.ProviderConfig{
		{ID: "ollama", Name: "Ollama", BaseURL: upstreamURL, Models: []string{"llama3"}},
		{ID: "openai", Name: "OpenAI", BaseURL: upstreamURL, RequiresAPIKey: true, Models: []string{"gpt-4o"}},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	registry, err := factory.NewRegistry(cfg)
	require.NoError(t, err)
	variants, err := factory.DefaultVariants()
	require.NoError(t, err)
	rl, err := relay.New(registry, variants, factory.NewHTTPClient(cfg.Upstream), relay.Options{MaxRetries: 0})
	require.NoError(t, err)

	srv, err := New(cfg, rl)
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func ollamaUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"model":"llama3","messages":[{"role":"user","content":"hi"}],"stream":true}`, string(body))
		_, _ = io.WriteString(w, `{"message":{"content":"Hel"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"content":"lo"},"done":false}`+"\n"+`{"done":true}`+"\n")
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

const ollamaChat = `{"provider":"ollama","model":"llama3","messages":[{"role":"user","content":"hi"}]}`

func TestChat_StreamsNormalizedFrames(t *testing.T) {
	upstream := ollamaUpstream(t)
	srv := newTestServer(t, upstream.URL, nil)

	rec := doRequest(srv, http.MethodPost, "/api/chat", ollamaChat, map[string]string{"x-api-key": testKey})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Len(t, rec.Header().Get("X-Request-Id"), 26)
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
}

func TestChat_UpstreamFailureIsInBand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(upstream.Close)
	srv := newTestServer(t, upstream.URL, nil)

	body := `{"provider":"openai","model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"config":{"apiKey":"sk"}}`
	rec := doRequest(srv, http.MethodPost, "/api/chat", body, map[string]string{"x-api-key": testKey})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"❌ Error: Rate limit exceeded. Please wait and try again.\"}}]}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
}

func TestChat_PreStreamErrors(t *testing.T) {
	srv := newTestServer(t, "http://upstream.invalid", nil)
	auth := map[string]string{"x-api-key": testKey}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown provider", `{"provider":"nope","model":"m","messages":[{"role":"user","content":"hi"}]}`, http.StatusBadRequest, "provider_not_found"},
		{"missing provider key", `{"provider":"openai","model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`, http.StatusUnauthorized, "api_key_required"},
		{"invalid turn", `{"provider":"ollama","model":"llama3","messages":[]}`, http.StatusBadRequest, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/chat", tt.body, auth)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{"provider":`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/chat", `{} {}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body must contain a single JSON object", decodeError(t, rec).Error.Message)
}

func TestChat_ValidationDetails(t *testing.T) {
	srv := newTestServer(t, "http://upstream.invalid", nil)

	body := `{"provider":"ollama","model":"llama3","messages":[{"role":"user","content":"<script>x</script>"}]}`
	rec := doRequest(srv, http.MethodPost, "/api/chat", body, map[string]string{"x-api-key": testKey})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decodeError(t, rec).Error.Details
	require.Len(t, details, 1)
	assert.Equal(t, "messages[0].content", details[0].Field)
}

func TestChat_Authentication(t *testing.T) {
	upstream := ollamaUpstream(t)
	srv := newTestServer(t, upstream.URL, nil)

	rec := doRequest(srv, http.MethodPost, "/api/chat", ollamaChat, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", decodeError(t, rec).Error.Code)

	rec = doRequest(srv, http.MethodPost, "/api/chat", ollamaChat, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "invalid_api_key", decodeError(t, rec).Error.Code)

	rec = doRequest(srv, http.MethodGet, "/api/providers", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "catalogue is public")
}

func TestNew_AuthConfiguration(t *testing.T) {
	cfg := config.Default()
	registry, err := factory.NewRegistry(cfg)
	require.NoError(t, err)
	variants, err := factory.DefaultVariants()
	require.NoError(t, err)
	rl, err := relay.New(registry, variants, nil, relay.Options{})
	require.NoError(t, err)

	_, err = New(cfg, rl)
	assert.ErrorContains(t, err, config.EnvAPIKey)

	cfg.Auth.AllowUnauthenticated = true
	srv, err := New(cfg, rl)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{"provider":"nope","model":"m","messages":[{"role":"user","content":"hi"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "requests pass without a key")

	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestProvidersAndHealth(t *testing.T) {
	upstream := ollamaUpstream(t)
	srv := newTestServer(t, upstream.URL, nil)

	rec := doRequest(srv, http.MethodGet, "/api/providers/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var providers struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Data    []struct {
			ID             string `json:"id"`
			RequiresAPIKey bool   `json:"requiresApiKey"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &providers))
	assert.True(t, providers.Success)
	assert.Equal(t, 2, providers.Count)
	require.Len(t, providers.Data, 2)
	assert.Equal(t, "ollama", providers.Data[0].ID)
	assert.True(t, providers.Data[1].RequiresAPIKey)

	doRequest(srv, http.MethodPost, "/api/chat", ollamaChat, map[string]string{"x-api-key": testKey})

	rec = doRequest(srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","turns":1,"failed_turns":0,"skipped_frames":0}`, rec.Body.String())
}
