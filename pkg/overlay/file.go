package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/mcpenv/internal/schema"
	"gopkg.in/yaml.v3"
)

// LayerFileName is the per-project overlay file read by batch builds.
const LayerFileName = "overrides.yaml"

// File is the on-disk form of a set of overlay layers.
type File struct {
	Version int         `yaml:"version,omitempty"`
	Layers  []FileLayer `yaml:"layers"`
}

// FileLayer declares one layer in a layer file.
type FileLayer struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Packages    []string          `yaml:"packages"`
	Set         FileSet           `yaml:"set,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Append      FileAppend        `yaml:"append,omitempty"`
	Attrs       map[string]string `yaml:"attrs,omitempty"`
}

// FileSet replaces scalar attributes.
type FileSet struct {
	Format  Format `yaml:"format,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// FileAppend extends list attributes by union.
type FileAppend struct {
	BuildSystem  []string `yaml:"build-system,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// Layer turns the declaration into a Layer.
func (fl FileLayer) Layer() Layer {
	decl := fl
	return Layer{
		Name:        decl.Name,
		Description: decl.Description,
		Targets:     MatchPatterns(decl.Packages...),
		Rewrite: func(_ PackageSet, pkg Package) Package {
			if decl.Set.Format != "" {
				pkg.Format = decl.Set.Format
			}
			if decl.Set.Version != "" {
				pkg.Version = decl.Set.Version
			}
			if len(decl.Env) > 0 {
				if pkg.Env == nil {
					pkg.Env = map[string]string{}
				}
				for k, v := range decl.Env {
					pkg.Env[k] = v
				}
			}
			pkg.BuildSystem = mergeUnion(pkg.BuildSystem, decl.Append.BuildSystem)
			pkg.Dependencies = mergeUnion(pkg.Dependencies, decl.Append.Dependencies)
			if len(decl.Attrs) > 0 {
				if pkg.Attrs == nil {
					pkg.Attrs = map[string]string{}
				}
				for k, v := range decl.Attrs {
					pkg.Attrs[k] = v
				}
			}
			return pkg
		},
	}
}

// ParseFile validates data against the overlay file schema and returns its
// layers in declaration order. source names the input in errors.
func ParseFile(data []byte, source string) ([]Layer, error) {
	res, err := schema.ValidateYAML(data, schema.OverlayFileV1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := res.Err(source); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	seen := map[string]bool{}
	layers := make([]Layer, 0, len(f.Layers))
	for _, fl := range f.Layers {
		if seen[fl.Name] {
			return nil, fmt.Errorf("%s: %w: %s", source, ErrDuplicateLayer, fl.Name)
		}
		seen[fl.Name] = true
		layers = append(layers, fl.Layer())
	}
	return layers, nil
}

// LoadFile reads and parses a layer file.
func LoadFile(path string) ([]Layer, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- caller-supplied layer file
	if err != nil {
		return nil, err
	}
	return ParseFile(data, path)
}
