package models

// Message roles accepted by the relay.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single conversational message in the unified schema.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// ProviderDescriptor is the static metadata for one upstream provider.
type ProviderDescriptor struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	BaseURL        string            `json:"baseUrl"`
	RequiresAPIKey bool              `json:"requiresApiKey"`
	Models         []string          `json:"models"`
	Headers        map[string]string `json:"-"`
}

// ProviderConfig is supplied by the caller per request.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// ChatTurn is one request/response cycle routed through the relay.
type ChatTurn struct {
	ID         string
	ProviderID string
	Model      string
	Messages   []Message
	Config     ProviderConfig
}

// Delta is an incremental fragment of generated text.
type Delta struct {
	Text string
}
