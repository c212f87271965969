// Package validation checks chat turns before they reach the relay.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"chatrelay/internal/models"
)

const (
	MaxMessages       = 100
	MaxContentLength  = 100000
	MaxModelLength    = 100
	MaxProviderLength = 50
)

var (
	scriptPattern   = regexp.MustCompile(`(?is)<script[\s\S]*?>[\s\S]*?</script>`)
	providerPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	modelPattern    = regexp.MustCompile(`^[a-zA-Z0-9._:/-]+$`)
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error aggregates every problem found in a request.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid chat request: " + strings.Join(parts, "; ")
}

func (e *Error) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Turn validates the shape of a chat turn. It returns nil or an *Error.
func Turn(turn models.ChatTurn) error {
	verr := &Error{}

	switch n := utf8.RuneCountInString(turn.ProviderID); {
	case n == 0:
		verr.add("provider", "provider cannot be empty")
	case n > MaxProviderLength:
		verr.add("provider", "provider name exceeds maximum length of %d", MaxProviderLength)
	case !providerPattern.MatchString(turn.ProviderID):
		verr.add("provider", "provider name can only contain letters, numbers, hyphens, and underscores")
	}

	switch n := utf8.RuneCountInString(turn.Model); {
	case n == 0:
		verr.add("model", "model cannot be empty")
	case n > MaxModelLength:
		verr.add("model", "model name exceeds maximum length of %d", MaxModelLength)
	case !modelPattern.MatchString(turn.Model):
		verr.add("model", "model name contains invalid characters")
	}

	validateMessages(verr, turn.Messages)

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func validateMessages(verr *Error, msgs []models.Message) {
	if len(msgs) == 0 {
		verr.add("messages", "at least one message is required")
		return
	}
	if len(msgs) > MaxMessages {
		verr.add("messages", "cannot process more than %d messages at once", MaxMessages)
		return
	}

	sawNonSystem := false
	for i, msg := range msgs {
		field := fmt.Sprintf("messages[%d]", i)

		switch msg.Role {
		case models.RoleUser, models.RoleAssistant:
			sawNonSystem = true
		case models.RoleSystem:
			if sawNonSystem {
				verr.add(field+".role", "system messages must come first")
			}
		default:
			verr.add(field+".role", "role %q must be one of user, assistant or system", msg.Role)
		}

		switch n := utf8.RuneCountInString(msg.Content); {
		case n == 0:
			verr.add(field+".content", "message content cannot be empty")
		case n > MaxContentLength:
			verr.add(field+".content", "message content exceeds maximum length of %d characters", MaxContentLength)
		case scriptPattern.MatchString(msg.Content):
			verr.add(field+".content", "message content contains potentially dangerous HTML")
		}
	}
}
