package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Factory builds a backend bound to one settings entity and, for link
// scoped calls, the provider-side tenant.
type Factory func(settings model.ServiceSettings, tenantID string) (Backend, error)

// Registry maps a settings type tag to its factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a provider. Registering a tag twice replaces the factory.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// For builds the backend of settings.
func (r *Registry) For(settings model.ServiceSettings, tenantID string) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[settings.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no backend registered for type %q (known: %s)", settings.Type, strings.Join(r.Types(), ", "))
	}
	b, err := f(settings, tenantID)
	if err != nil {
		return nil, fmt.Errorf("build %s backend for settings %s: %w", settings.Type, settings.ID, err)
	}
	return b, nil
}

// Types returns the registered type tags.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
