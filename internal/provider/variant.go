package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatrelay/internal/models"
	"chatrelay/internal/stream"
)

const contentTypeJSON = "application/json"

// Endpoint is where and how a turn reaches its upstream.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
}

// Request is a fully shaped upstream call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewJSONRequest marshals payload into a POST request to url.
func NewJSONRequest(url string, payload any) (Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return Request{}, fmt.Errorf("marshal payload: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", contentTypeJSON)

	return Request{
		Method: http.MethodPost,
		URL:    url,
		Header: header,
		Body:   bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}),
	}, nil
}

// HTTPRequest builds a fresh *http.Request; callers may invoke it once per attempt.
func (r Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header = r.Header.Clone()
	return req, nil
}

// ShapeFunc translates a turn into its provider's wire request.
type ShapeFunc func(turn models.ChatTurn, ep Endpoint) (Request, error)

// DecoderFactory allocates the frame decoder for one turn.
type DecoderFactory func(obs stream.Observer) stream.Decoder

// Variant pairs a request shaper with the decoder for its response framing.
type Variant struct {
	Name       string
	Shape      ShapeFunc
	NewDecoder DecoderFactory
}

func (v Variant) validate() error {
	if v.Name == "" {
		return errors.New("variant name must not be empty")
	}
	if v.Shape == nil || v.NewDecoder == nil {
		return fmt.Errorf("variant %q must define both Shape and NewDecoder", v.Name)
	}
	return nil
}

// VariantTable selects a variant by provider id. Ids without an entry
// resolve to the fallback.
type VariantTable struct {
	fallback Variant
	byID     map[string]Variant
}

// NewVariantTable constructs a table that resolves unknown ids to fallback.
func NewVariantTable(fallback Variant) (*VariantTable, error) {
	if err := fallback.validate(); err != nil {
		return nil, fmt.Errorf("fallback variant: %w", err)
	}
	return &VariantTable{
		fallback: fallback,
		byID:     make(map[string]Variant),
	}, nil
}

// Register binds a provider id to a variant.
func (t *VariantTable) Register(id string, v Variant) error {
	if id == "" {
		return errors.New("provider id must not be empty")
	}
	if err := v.validate(); err != nil {
		return err
	}
	if _, exists := t.byID[id]; exists {
		return fmt.Errorf("variant for provider %q already registered", id)
	}
	t.byID[id] = v
	return nil
}

// Resolve returns the variant for id.
func (t *VariantTable) Resolve(id string) Variant {
	if v, ok := t.byID[id]; ok {
		return v
	}
	return t.fallback
}
