package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration.
const (
	EnvAPIKey = "API_CHAT_KEY"
	EnvPort   = "PORT"
)

const (
	defaultPort                  = 8080
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultStreamTimeout         = 5 * time.Minute
	defaultMaxRetries            = 2
	defaultRetryInitialInterval  = 250 * time.Millisecond
	defaultBufferSize            = 16
)

//go:embed providers.yaml
var defaultCatalogue []byte

var providerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Upstream  UpstreamConfig   `yaml:"upstream"`
	Chat      ChatConfig       `yaml:"chat"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig controls the x-api-key check on the chat endpoint.
type AuthConfig struct {
	APIKey               string `yaml:"api_key"`
	AllowUnauthenticated bool   `yaml:"allow_unauthenticated"`
}

// UpstreamConfig tunes calls to provider APIs.
type UpstreamConfig struct {
	// ResponseHeaderTimeout bounds the wait for the upstream status line.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	// StreamTimeout bounds a whole turn, body included. Zero disables it.
	StreamTimeout        time.Duration `yaml:"stream_timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
}

// ChatConfig holds per-turn relay settings.
type ChatConfig struct {
	// SystemPrompt is prepended to turns that carry no system message.
	SystemPrompt string `yaml:"system_prompt"`
	// BufferSize is the capacity of the delta channel between the upstream
	// reader and the downstream writer.
	BufferSize int `yaml:"buffer_size"`
}

// ProviderConfig describes one entry of the provider catalogue.
type ProviderConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	BaseURL        string   `yaml:"base_url"`
	RequiresAPIKey bool     `yaml:"requires_api_key"`
	Models         []string `yaml:"models"`
	Headers        Headers  `yaml:"headers"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

type catalogue struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Default returns the built-in configuration with the embedded provider catalogue.
func Default() Config {
	var cat catalogue
	if err := yaml.Unmarshal(defaultCatalogue, &cat); err != nil {
		panic(fmt.Sprintf("embedded provider catalogue is invalid: %v", err))
	}

	return Config{
		Server: ServerConfig{Port: defaultPort},
		Upstream: UpstreamConfig{
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
			StreamTimeout:         defaultStreamTimeout,
			MaxRetries:            defaultMaxRetries,
			RetryInitialInterval:  defaultRetryInitialInterval,
		},
		Chat:      ChatConfig{BufferSize: defaultBufferSize},
		Providers: cat.Providers,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		defaults := cfg.Providers
		cfg.Providers = nil
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
		cfg.Providers = mergeProviders(defaults, cfg.Providers)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		c.Auth.APIKey = key
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", EnvPort, raw)
		}
		c.Server.Port = port
	}
	return nil
}

// mergeProviders replaces defaults that share an id with an override and
// appends the remaining overrides.
func mergeProviders(defaults, overrides []ProviderConfig) []ProviderConfig {
	byID := make(map[string]int, len(overrides))
	for i, p := range overrides {
		byID[p.ID] = i
	}

	out := make([]ProviderConfig, 0, len(defaults)+len(overrides))
	used := make(map[string]bool, len(overrides))
	for _, p := range defaults {
		if i, ok := byID[p.ID]; ok {
			out = append(out, overrides[i])
			used[p.ID] = true
			continue
		}
		out = append(out, p)
	}
	for _, p := range overrides {
		if !used[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if c.Upstream.ResponseHeaderTimeout < 0 {
		return errors.New("upstream.response_header_timeout must not be negative")
	}
	if c.Upstream.StreamTimeout < 0 {
		return errors.New("upstream.stream_timeout must not be negative")
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must not be negative, got %d", c.Upstream.MaxRetries)
	}
	if c.Upstream.RetryInitialInterval < 0 {
		return errors.New("upstream.retry_initial_interval must not be negative")
	}
	if c.Chat.BufferSize <= 0 {
		return fmt.Errorf("chat.buffer_size must be positive, got %d", c.Chat.BufferSize)
	}

	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, provider := range c.Providers {
		if err := validateProvider(provider); err != nil {
			return err
		}
		if seen[provider.ID] {
			return fmt.Errorf("provider %s: configured more than once", provider.ID)
		}
		seen[provider.ID] = true
	}

	return nil
}

func validateProvider(provider ProviderConfig) error {
	if !providerIDPattern.MatchString(provider.ID) {
		return fmt.Errorf("provider id %q must be 1-50 letters, digits, hyphens or underscores", provider.ID)
	}

	baseURL := strings.TrimSpace(provider.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("provider %s: base_url must be provided", provider.ID)
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider %s: base_url %q must be an absolute URL", provider.ID, baseURL)
	}

	for _, model := range provider.Models {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("provider %s: model id must not be empty", provider.ID)
		}
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", provider.ID, headerKey)
		}
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
