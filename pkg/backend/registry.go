package backend

import (
	"sort"
	"sync"

	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/errors"
)

// Factory creates an adapter instance from its backend configuration.
// Factories validate credentials and compile query templates; they do
// not connect.
type Factory func(cfg *config.Backend) (Backend, error)

// Registry maps backend kinds to factories. Adapter packages register
// themselves from init.
type Registry struct {
	kinds map[string]Factory
	mu    sync.RWMutex
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Factory),
	}
}

// Register adds a factory for a backend kind.
func (r *Registry) Register(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "backend kind %s already registered", kind)
	}

	r.kinds[kind] = factory
	return nil
}

// Create instantiates an adapter of the configured kind.
func (r *Registry) Create(cfg *config.Backend) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.kinds[cfg.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown backend kind %q", cfg.Kind)
	}

	b, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create "+cfg.Kind+" backend")
	}

	return b, nil
}

// Kinds returns the registered backend kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Register adds a factory to the global registry.
func Register(kind string, factory Factory) error {
	return globalRegistry.Register(kind, factory)
}

// Create instantiates an adapter from the global registry.
func Create(cfg *config.Backend) (Backend, error) {
	return globalRegistry.Create(cfg)
}

// Kinds returns the kinds registered in the global registry.
func Kinds() []string {
	return globalRegistry.Kinds()
}
