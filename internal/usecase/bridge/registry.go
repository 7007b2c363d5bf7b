package bridge

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// ProviderType describes a registered provider implementation.
type ProviderType struct {
	Name        string
	Description string
	Factory     provider.Factory
}

// Registry maps provider names given on the command line to factories.
type Registry struct {
	types map[string]ProviderType
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ProviderType)}
}

// Register adds a provider type. Registering a name twice is a programming error.
func (r *Registry) Register(name, description string, f provider.Factory) {
	if _, dup := r.types[name]; dup {
		panic(fmt.Sprintf("bridge: provider %q registered twice", name))
	}
	r.types[name] = ProviderType{Name: name, Description: description, Factory: f}
}

// Build instantiates the provider registered under name.
func (r *Registry) Build(name string, deps provider.Deps) (provider.Provider, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	p, err := t.Factory(deps)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	return p, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Types returns the registered provider types sorted by name.
func (r *Registry) Types() []ProviderType {
	out := make([]ProviderType, 0, len(r.types))
	for _, n := range r.Names() {
		out = append(out, r.types[n])
	}
	return out
}
