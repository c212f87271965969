package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	anthropicProvider "chatrelay/internal/provider/anthropic"
	googleProvider "chatrelay/internal/provider/google"
	huggingfaceProvider "chatrelay/internal/provider/huggingface"
	ollamaProvider "chatrelay/internal/provider/ollama"
	openaiProvider "chatrelay/internal/provider/openai"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// openAICompatible lists catalogue ids that speak the chat completions dialect.
var openAICompatible = []string{"openai", "moonshot", "xai", "openrouter", "groq", "deepseek", "mistral", "nvidia"}

// NewRegistry builds the provider registry from the configured catalogue.
func NewRegistry(cfg config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, p := range cfg.Providers {
		desc := models.ProviderDescriptor{
			ID:             p.ID,
			Name:           p.Name,
			BaseURL:        p.BaseURL,
			RequiresAPIKey: p.RequiresAPIKey,
			Models:         p.Models,
			Headers:        p.Headers,
		}
		if desc.Name == "" {
			desc.Name = p.ID
		}
		if err := registry.Register(desc); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", p.ID, err)
		}
	}
	return registry, nil
}

// DefaultVariants returns the variant table for the built-in catalogue.
// Providers without an entry are treated as OpenAI-compatible.
func DefaultVariants() (*provider.VariantTable, error) {
	table, err := provider.NewVariantTable(openaiProvider.Compatible())
	if err != nil {
		return nil, err
	}

	for _, id := range openAICompatible {
		if err := table.Register(id, openaiProvider.Compatible()); err != nil {
			return nil, err
		}
	}

	specific := map[string]provider.Variant{
		"minimax":     openaiProvider.ChatCompletionV2(),
		"anthropic":   anthropicProvider.Variant(),
		"google":      googleProvider.Variant(),
		"ollama":      ollamaProvider.Variant(),
		"huggingface": huggingfaceProvider.Variant(),
	}
	for id, v := range specific {
		if err := table.Register(id, v); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// NewHTTPClient returns the client used for upstream calls. It carries no
// overall timeout so long streams are not cut off; the header wait is bounded
// by the transport instead.
func NewHTTPClient(cfg config.UpstreamConfig) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &http.Client{
		Transport: transport,
	}
}
