// Package convert translates Poetry manifests into PEP 621 manifests for uv.
package convert

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/manifest"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
)

// File names inside a project tree.
const (
	ManifestFile   = "pyproject.toml"
	LegacyLockFile = "poetry.lock"
	TargetLockFile = "uv.lock"
)

// Defaults applied when the legacy manifest omits a field.
const (
	DefaultVersion        = "0.1.0"
	DefaultRequiresPython = ">=3.8"
)

// PythonKey is the reserved dependency key for the interpreter constraint.
const PythonKey = "python"

// DefaultBuildSystem is emitted for every converted manifest.
var DefaultBuildSystem = manifest.BuildSystem{
	Requires:     []string{"hatchling"},
	BuildBackend: "hatchling.build",
}

// Convert reads the legacy manifest in sourceTree and translates it. The tree
// must hold both pyproject.toml and poetry.lock. Nothing is written.
func Convert(sourceTree string) (*manifest.Target, error) {
	manifestPath := filepath.Join(sourceTree, ManifestFile)
	if !safeio.FileExists(manifestPath) {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotLegacyProject, sourceTree, ManifestFile)
	}
	if !safeio.FileExists(filepath.Join(sourceTree, LegacyLockFile)) {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotLegacyProject, sourceTree, LegacyLockFile)
	}

	doc, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	return ConvertDocument(doc)
}

// ConvertDocument is the pure translation from a parsed legacy manifest to a
// target manifest. Dependency order follows the source tables.
func ConvertDocument(doc *manifest.Document) (*manifest.Target, error) {
	legacy, err := manifest.ReadLegacy(doc)
	if err != nil {
		if errors.Is(err, manifest.ErrNoLegacyTable) {
			return nil, fmt.Errorf("%w: %v", ErrMissingLegacyConfig, err)
		}
		return nil, err
	}
	if legacy.Name == nil || *legacy.Name == "" {
		return nil, fmt.Errorf("%w: [tool.poetry] has no name", ErrMissingLegacyConfig)
	}

	runtimeSpecs, python := translateTable(legacy.Dependencies)
	devSpecs, _ := translateTable(legacy.DevDependencies)

	requiresPython := DefaultRequiresPython
	if python != nil && !python.IsWildcard() {
		requiresPython = python.Constraint
	}

	project := manifest.Project{
		Name:           *legacy.Name,
		Version:        valueOr(legacy.Version, DefaultVersion),
		Description:    valueOr(legacy.Description, ""),
		Authors:        []manifest.Author{},
		License:        legacy.License,
		Readme:         legacy.Readme,
		RequiresPython: requiresPython,
		Dependencies:   requirements(runtimeSpecs),
		Scripts:        translateScripts(legacy.Scripts),
	}
	for _, a := range legacy.Authors {
		project.Authors = append(project.Authors, manifest.ParseAuthor(a))
	}

	target := &manifest.Target{
		Project:     project,
		BuildSystem: manifest.BuildSystem{
			Requires:     append([]string(nil), DefaultBuildSystem.Requires...),
			BuildBackend: DefaultBuildSystem.BuildBackend,
		},
	}
	if len(devSpecs) > 0 {
		target.Tool = &manifest.TargetTool{UV: &manifest.UVTool{DevDependencies: requirements(devSpecs)}}
	}

	logger.Debug("converted legacy manifest",
		logger.String("project", project.Name),
		logger.Int("dependencies", len(project.Dependencies)),
		logger.Int("dev_dependencies", len(devSpecs)),
		logger.String("requires_python", requiresPython))

	return target, nil
}

// TranslateDependency maps one legacy dependency value to a spec: a plain
// string is kept verbatim, a table contributes its "version" field, and
// anything else becomes the wildcard.
func TranslateDependency(name string, spec manifest.Value) manifest.DependencySpec {
	switch v := spec.(type) {
	case string:
		return manifest.DependencySpec{Name: name, Constraint: v}
	case *manifest.Table:
		if version, ok := v.String("version"); ok {
			return manifest.DependencySpec{Name: name, Constraint: version}
		}
	}
	logger.Debug("dependency has no version; using wildcard", logger.String("dependency", name))
	return manifest.DependencySpec{Name: name, Constraint: manifest.Wildcard}
}

// translateTable returns the non-python specs in source order plus the
// python spec when present.
func translateTable(t *manifest.Table) ([]manifest.DependencySpec, *manifest.DependencySpec) {
	specs := []manifest.DependencySpec{}
	var python *manifest.DependencySpec
	for _, name := range t.Keys() {
		v, _ := t.Get(name)
		spec := TranslateDependency(name, v)
		if name == PythonKey {
			python = &spec
			continue
		}
		specs = append(specs, spec)
	}
	return specs, python
}

func requirements(specs []manifest.DependencySpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Requirement())
	}
	return out
}

// translateScripts keeps console-script entries; Poetry's file-type scripts
// have no PEP 621 equivalent and are dropped.
func translateScripts(t *manifest.Table) map[string]string {
	if t.Len() == 0 {
		return nil
	}
	scripts := make(map[string]string, t.Len())
	for _, name := range t.Keys() {
		v, _ := t.Get(name)
		switch ref := v.(type) {
		case string:
			scripts[name] = ref
		case *manifest.Table:
			if r, ok := ref.String("reference"); ok {
				if typ, _ := ref.String("type"); typ == "" || typ == "console" {
					scripts[name] = r
					continue
				}
			}
			logger.Debug("dropping non-console script", logger.String("script", name))
		}
	}
	if len(scripts) == 0 {
		return nil
	}
	return scripts
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
