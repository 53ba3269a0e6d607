package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/manifest"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
	"github.com/fulmenhq/mcpenv/pkg/workspace"
)

// ErrLegacyNoMigrator indicates a legacy project in a batch with no migrator configured
var ErrLegacyNoMigrator = errors.New("legacy project and no migrator configured")

// Result is the outcome of one batch build.
type Result struct {
	Name   string
	Source string
	// Migrated is set when the project was converted before building.
	Migrated    bool
	Environment *Environment
	Err         error
	Duration    time.Duration
}

// Succeeded reports whether the build produced an environment.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.Environment != nil
}

// Discover lists the server directories under serversRoot: immediate
// subdirectories holding a pyproject.toml whose names match no exclude
// pattern. The result is sorted.
func (b *Builder) Discover(serversRoot string) ([]string, error) {
	entries, err := os.ReadDir(serversRoot)
	if err != nil {
		return nil, fmt.Errorf("read servers root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if pattern, ok := b.excluded(e.Name()); ok {
			logger.Debug("skipping excluded directory", logger.String("name", e.Name()), logger.String("pattern", pattern))
			continue
		}
		if !safeio.FileExists(filepath.Join(serversRoot, e.Name(), workspace.ManifestFile)) {
			logger.Debug("skipping directory without manifest", logger.String("name", e.Name()))
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (b *Builder) excluded(name string) (string, bool) {
	for _, p := range b.opts.Exclude {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return p, true
		}
	}
	return "", false
}

// BuildAll builds every server under serversRoot in a bounded worker pool.
// A failed build is recorded in its Result and never stops the others.
// Results are sorted by name.
func (b *Builder) BuildAll(ctx context.Context, serversRoot string) ([]Result, error) {
	names, err := b.Discover(serversRoot)
	if err != nil {
		return nil, err
	}
	logger.Info("building servers", logger.String("root", serversRoot), logger.Int("count", len(names)), logger.Int("workers", b.opts.Workers))

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(names))
		g       errgroup.Group
	)
	g.SetLimit(b.opts.Workers)

	for _, name := range names {
		name := name
		g.Go(func() error {
			res := b.buildServer(ctx, name, filepath.Join(serversRoot, name))
			if res.Err != nil {
				logger.Error("server build failed", logger.String("name", name), logger.Err(res.Err))
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (b *Builder) buildServer(ctx context.Context, name, dir string) (res Result) {
	start := time.Now()
	res = Result{Name: name, Source: dir}
	defer func() { res.Duration = time.Since(start) }()

	req, err := loadServerRequest(name, dir)
	if err != nil {
		res.Err = &BuildError{Project: name, Phase: PhaseLoad, Err: err}
		return res
	}

	doc, err := manifest.Load(filepath.Join(dir, workspace.ManifestFile))
	if err != nil {
		res.Err = &BuildError{Project: name, Phase: PhaseLoad, Err: err}
		return res
	}
	if manifest.DetectDialect(doc) == manifest.DialectLegacy {
		migrated, err := b.migrate(ctx, name, dir, req.Env)
		if err != nil {
			res.Err = &BuildError{Project: name, Phase: PhaseMigrate, Err: err}
			return res
		}
		req.SourceTree = migrated
		res.Source = migrated
		res.Migrated = true
	}

	res.Environment, res.Err = b.Build(ctx, req)
	return res
}

// loadServerRequest reads the optional overrides.yaml, meta.yaml and
// build.env of a server directory.
func loadServerRequest(name, dir string) (Request, error) {
	req := Request{ProjectName: name, SourceTree: dir}

	if path := filepath.Join(dir, overlay.LayerFileName); safeio.FileExists(path) {
		layers, err := overlay.LoadFile(path)
		if err != nil {
			return req, err
		}
		req.ExtraLayers = layers
	}

	if path := filepath.Join(dir, MetaFileName); safeio.FileExists(path) {
		meta, err := LoadMeta(path)
		if err != nil {
			return req, err
		}
		req.Meta = meta
		req.PythonVersion = meta.PythonVersion
		req.PreferWheels = meta.PreferWheels
		req.MCPConfig = meta.MCP
	}

	if path := filepath.Join(dir, EnvFileName); safeio.FileExists(path) {
		env, err := godotenv.Read(path)
		if err != nil {
			return req, fmt.Errorf("%s: %w", path, err)
		}
		req.Env = env
	}
	return req, nil
}

// migrate converts a legacy server into the scratch tree and returns the
// migrated path. A previous migration of the same server is replaced.
func (b *Builder) migrate(ctx context.Context, name, dir string, env map[string]string) (string, error) {
	if b.opts.Migrator == nil || b.opts.ScratchDir == "" {
		return "", ErrLegacyNoMigrator
	}
	dst := filepath.Join(b.opts.ScratchDir, "migrated", name)
	if err := os.RemoveAll(dst); err != nil {
		return "", fmt.Errorf("clear previous migration: %w", err)
	}
	m := *b.opts.Migrator
	m.Env = mergeEnv(m.Env, env)
	if _, err := m.Migrate(ctx, dir, dst); err != nil {
		return "", err
	}
	return dst, nil
}
