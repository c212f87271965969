package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatrelay/internal/models"
)

// ChatRequest models the POST /api/chat payload sent by the browser client.
type ChatRequest struct {
	Messages []ChatMessage
	Provider string
	Model    string
	Config   models.ProviderConfig
}

// ChatMessage is one message of the inbound history.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// UnmarshalJSON normalises identifiers and the optional config block.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Messages []ChatMessage         `json:"messages"`
		Provider string                `json:"provider"`
		Model    string                `json:"model"`
		Config   *models.ProviderConfig `json:"config"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	r.Messages = raw.Messages
	r.Provider = strings.TrimSpace(raw.Provider)
	r.Model = strings.TrimSpace(raw.Model)
	r.Config = models.ProviderConfig{}
	if raw.Config != nil {
		r.Config.APIKey = strings.TrimSpace(raw.Config.APIKey)
		r.Config.BaseURL = strings.TrimSpace(raw.Config.BaseURL)
	}
	return nil
}

// ToTurn converts the request into the canonical turn.
func (r ChatRequest) ToTurn(id string) models.ChatTurn {
	msgs := make([]models.Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		msgs = append(msgs, models.Message{
			Role:      strings.ToLower(strings.TrimSpace(msg.Role)),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}

	return models.ChatTurn{
		ID:         id,
		ProviderID: r.Provider,
		Model:      r.Model,
		Messages:   msgs,
		Config:     r.Config,
	}
}
