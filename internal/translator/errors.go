package translator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorPrefix marks in-stream error messages so they stand out in the chat.
const ErrorPrefix = "❌ Error: "

// Kind buckets an in-stream failure.
type Kind int

const (
	UnknownStreamError Kind = iota
	InvalidAPIKey
	PaymentRequired
	RateLimited
	ProviderUnavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidAPIKey:
		return "invalid_api_key"
	case PaymentRequired:
		return "payment_required"
	case RateLimited:
		return "rate_limited"
	case ProviderUnavailable:
		return "provider_unavailable"
	default:
		return "unknown_stream_error"
	}
}

var kindMessages = map[Kind]string{
	InvalidAPIKey:       "Invalid API key. Please check your API key in Settings.",
	PaymentRequired:     "Payment required. Your API key may need credits or a valid payment method.",
	RateLimited:         "Rate limit exceeded. Please wait and try again.",
	ProviderUnavailable: "Provider service error. Please try again later.",
}

var embeddedStatus = regexp.MustCompile(`\b(401|402|429|500)\b`)

// UpstreamError is returned when a provider answers with a non-2xx status.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// Classify maps err to a Kind, preferring a typed UpstreamError status and
// falling back to a status code embedded in the error text.
func Classify(err error) Kind {
	if err == nil {
		return UnknownStreamError
	}

	status := 0
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		status = upstreamErr.StatusCode
	} else if match := embeddedStatus.FindString(err.Error()); match != "" {
		status, _ = strconv.Atoi(match)
	}

	switch status {
	case 401:
		return InvalidAPIKey
	case 402:
		return PaymentRequired
	case 429:
		return RateLimited
	case 500:
		return ProviderUnavailable
	default:
		return UnknownStreamError
	}
}

// StreamErrorMessage renders err as the synthetic chat delta sent before the
// terminal sentinel.
func StreamErrorMessage(err error) string {
	if msg, ok := kindMessages[Classify(err)]; ok {
		return ErrorPrefix + msg
	}

	detail := "Unknown error occurred"
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		detail = err.Error()
	}
	return ErrorPrefix + detail
}
