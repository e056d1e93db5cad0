package providers

import (
	"errors"
	"sync"

	"github.com/dnovak/llmrelay/internal/domain"
)

// ErrAdapterNotFound is returned when no adapter is registered for a
// provider.
var ErrAdapterNotFound = errors.New("adapter not found")

// Registry holds the adapters materialized for providers that have
// credentials configured. Grounded on services/providers/registry.go,
// simplified to this system's needs: no model-prefix cache, since the
// catalog (not the registry) is the source of truth for which models a
// provider serves.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Provider]Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.Provider]Adapter)}
}

// Register adds an adapter, replacing any existing one for the same
// provider.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Provider()] = a
}

// Get returns the adapter for provider, if one is configured.
func (r *Registry) Get(provider domain.Provider) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[provider]
	return a, ok
}

// Configured returns every provider with a registered adapter, in no
// particular order.
func (r *Registry) Configured() []domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
