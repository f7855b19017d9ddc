package component

import (
	"sync"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
)

// Deps carries the store handles a component may use. Lookup resolves a
// component id to its configuration snapshot within the current cycle,
// for models referencing their source loader.
type Deps struct {
	Series    persistence.SeriesStore
	Meta      persistence.MetadataStore
	Artifacts persistence.ArtifactStore
	Lookup    func(id string) (core.ComponentSpec, bool)
}

// Builder constructs a component variant from its configuration snapshot.
type Builder func(spec core.ComponentSpec, deps Deps) (Component, error)

type registryEntry struct {
	category core.Category
	builder  Builder
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registryEntry{}
)

// Register adds a component variant under its type discriminator.
// Variants register themselves in init.
func Register(typ string, category core.Category, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = registryEntry{category: category, builder: builder}
}

// Build constructs the component for the given snapshot. An unknown type
// is a configuration error.
func Build(spec core.ComponentSpec, deps Deps) (Component, core.Category, error) {
	registryMu.RLock()
	entry, ok := registry[spec.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, "", NewError(KindConfiguration, nil, "unknown component type %q", spec.Type)
	}
	comp, err := entry.builder(spec, deps)
	if err != nil {
		return nil, entry.category, err
	}
	return comp, entry.category, nil
}

// Types returns the registered type names for the given category.
func Types(category core.Category) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var types []string
	for typ, entry := range registry {
		if entry.category == category {
			types = append(types, typ)
		}
	}
	return types
}
