package builder

import (
	"fmt"

	"github.com/fulmenhq/mcpenv/pkg/config"
	"github.com/fulmenhq/mcpenv/pkg/convert"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/tools"
)

// LoadCatalog returns the built-in layers plus every layer declared in files.
func LoadCatalog(files []string) (*overlay.Catalog, error) {
	catalog := overlay.DefaultCatalog()
	for _, f := range files {
		layers, err := overlay.LoadFile(f)
		if err != nil {
			return nil, fmt.Errorf("load layer file: %w", err)
		}
		if catalog, err = catalog.With(layers...); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return catalog, nil
}

// NewFromConfig wires a Builder from configuration, running the installer
// and the migration lock step through executor.
func NewFromConfig(cfg *config.Config, executor tools.ToolExecutor) (*Builder, error) {
	catalog, err := LoadCatalog(cfg.Layers.Files)
	if err != nil {
		return nil, err
	}
	common, err := catalog.Resolve(cfg.Layers.Common)
	if err != nil {
		return nil, fmt.Errorf("layers.common: %w", err)
	}
	registry, err := overlay.NewRegistry(catalog, cfg.Layers.Projects)
	if err != nil {
		return nil, fmt.Errorf("layers.projects: %w", err)
	}
	scratch, err := config.GetScratchDir()
	if err != nil {
		return nil, err
	}

	migrator := convert.NewMigrator(executor, cfg.Installer.Tool)
	migrator.Timeout = cfg.BuildTimeout

	return New(Options{
		OutputRoot:    cfg.OutputRoot,
		BinaryPrefix:  cfg.BinaryPrefix,
		PythonVersion: cfg.PythonVersion,
		PreferWheels:  cfg.PreferWheels,
		Timeout:       cfg.BuildTimeout,
		Workers:       cfg.EffectiveWorkers(),
		Common:        common,
		Registry:      registry,
		Installer:     NewUVInstaller(executor, cfg.Installer.Tool),
		Migrator:      migrator,
		ScratchDir:    scratch,
		Exclude:       cfg.Batch.Exclude,
	})
}
