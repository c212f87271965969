package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"chatrelay/internal/models"
)

// ErrProviderNotFound indicates the requested provider is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// ErrDuplicateProvider indicates an attempt to register the same provider twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// Registry maintains the provider catalogue. It is populated once at startup
// and only read afterwards.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]models.ProviderDescriptor
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]models.ProviderDescriptor),
	}
}

// Register adds a descriptor to the registry.
func (r *Registry) Register(desc models.ProviderDescriptor) error {
	id := strings.TrimSpace(desc.ID)
	if id == "" {
		return errors.New("provider id must not be empty")
	}
	if strings.TrimSpace(desc.BaseURL) == "" {
		return fmt.Errorf("provider %q: base url must not be empty", id)
	}

	desc.ID = id
	desc.BaseURL = strings.TrimRight(strings.TrimSpace(desc.BaseURL), "/")
	desc.Models = append([]string(nil), desc.Models...)
	desc.Headers = cloneHeaders(desc.Headers)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
	}
	r.byID[id] = desc
	return nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (models.ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.byID[id]
	if !ok {
		return models.ProviderDescriptor{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	desc.Models = append([]string(nil), desc.Models...)
	desc.Headers = cloneHeaders(desc.Headers)
	return desc, nil
}

// List returns every registered descriptor ordered by id.
func (r *Registry) List() []models.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProviderDescriptor, 0, len(r.byID))
	for _, desc := range r.byID {
		desc.Models = append([]string(nil), desc.Models...)
		desc.Headers = cloneHeaders(desc.Headers)
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}
