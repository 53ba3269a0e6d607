package overlay

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fulmenhq/mcpenv/pkg/logger"
)

var (
	// ErrUnknownLayer indicates a layer name with no catalog entry
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrDuplicateLayer indicates two layers registered under one name
	ErrDuplicateLayer = errors.New("duplicate layer")
)

// Catalog is an immutable name to layer table.
type Catalog struct {
	layers map[string]Layer
}

// NewCatalog builds a catalog from layers. Names must be unique.
func NewCatalog(layers ...Layer) (*Catalog, error) {
	c := &Catalog{layers: make(map[string]Layer, len(layers))}
	for _, l := range layers {
		if l.Name == "" {
			return nil, fmt.Errorf("layer has no name")
		}
		if _, exists := c.layers[l.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLayer, l.Name)
		}
		c.layers[l.Name] = l
	}
	return c, nil
}

// DefaultCatalog holds only the built-in layers.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(BuiltinLayers()...)
	if err != nil {
		panic(err) // built-in names are unique
	}
	return c
}

// With returns a new catalog holding c's layers plus layers.
func (c *Catalog) With(layers ...Layer) (*Catalog, error) {
	all := make([]Layer, 0, len(c.layers)+len(layers))
	for _, n := range c.Names() {
		all = append(all, c.layers[n])
	}
	return NewCatalog(append(all, layers...)...)
}

// Get returns the layer registered under name.
func (c *Catalog) Get(name string) (Layer, bool) {
	l, ok := c.layers[name]
	return l, ok
}

// Resolve maps names to layers, keeping order and duplicates.
func (c *Catalog) Resolve(names []string) ([]Layer, error) {
	out := make([]Layer, 0, len(names))
	for _, n := range names {
		l, ok := c.layers[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, n)
		}
		out = append(out, l)
	}
	return out, nil
}

// Names lists the catalog entries, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.layers))
	for n := range c.layers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registry maps project names to the single layer registered for them.
type Registry struct {
	catalog  *Catalog
	projects map[string]string
}

// NewRegistry checks that every mapped layer exists in catalog.
func NewRegistry(catalog *Catalog, projects map[string]string) (*Registry, error) {
	r := &Registry{catalog: catalog, projects: make(map[string]string, len(projects))}
	for project, layer := range projects {
		if _, ok := catalog.Get(layer); !ok {
			return nil, fmt.Errorf("%w: %s (registered for project %s)", ErrUnknownLayer, layer, project)
		}
		r.projects[project] = layer
	}
	return r, nil
}

// LayersFor returns the layer registered for projectName as a one-element
// slice, or an empty slice when there is none. Names match exactly.
func (r *Registry) LayersFor(projectName string) []Layer {
	name, ok := r.projects[projectName]
	if !ok {
		return []Layer{}
	}
	l, ok := r.catalog.Get(name)
	if !ok {
		logger.Error("registered layer vanished from catalog", logger.String("project", projectName), logger.String("layer", name))
		return []Layer{}
	}
	return []Layer{l}
}

// Catalog returns the catalog layers are resolved from.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}
