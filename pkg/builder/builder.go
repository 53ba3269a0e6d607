// Package builder materializes isolated runtime environments from a
// workspace and an overlay build plan.
package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fulmenhq/mcpenv/pkg/buildinfo"
	"github.com/fulmenhq/mcpenv/pkg/convert"
	"github.com/fulmenhq/mcpenv/pkg/ignore"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
	"github.com/fulmenhq/mcpenv/pkg/workspace"
)

// Files written under share/mcpenv of every environment.
const (
	EnvironmentFile = "environment.json"
	MCPConfigFile   = "mcp-config.json"
)

var metadataDir = filepath.Join("share", "mcpenv")

// DefaultCacheSize bounds the fingerprint cache.
const DefaultCacheSize = 64

// Options configure a Builder.
type Options struct {
	// OutputRoot holds one environment directory per project.
	OutputRoot    string
	BinaryPrefix  string
	PythonVersion string
	PreferWheels  bool
	// Timeout bounds the install step of one build; zero means no limit.
	Timeout time.Duration
	// Workers bounds parallel batch builds; zero means runtime.NumCPU().
	Workers int
	// Common layers run first in every plan.
	Common   []overlay.Layer
	Registry *overlay.Registry
	// Installer materializes environments.
	Installer Installer
	// Migrator converts legacy projects during batch builds. Nil disables
	// migration and legacy projects fail.
	Migrator *convert.Migrator
	// ScratchDir receives migrated trees.
	ScratchDir string
	// Exclude holds doublestar patterns for directory names skipped by BuildAll.
	Exclude   []string
	CacheSize int
}

// Builder builds environments. It is safe for concurrent use.
type Builder struct {
	opts  Options
	cache *lru.Cache[string, *Environment]
}

// New validates opts and fills defaults.
func New(opts Options) (*Builder, error) {
	if opts.Installer == nil {
		return nil, errors.New("builder needs an installer")
	}
	if opts.OutputRoot == "" {
		return nil, errors.New("builder needs an output root")
	}
	abs, err := filepath.Abs(opts.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	opts.OutputRoot = abs

	if opts.Registry == nil {
		opts.Registry, err = overlay.NewRegistry(overlay.DefaultCatalog(), nil)
		if err != nil {
			return nil, err
		}
	}
	if opts.BinaryPrefix == "" {
		opts.BinaryPrefix = "mcp"
	}
	if opts.PythonVersion == "" {
		opts.PythonVersion = "3.12"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Environment](size)
	if err != nil {
		return nil, err
	}
	return &Builder{opts: opts, cache: cache}, nil
}

// Request asks for one environment.
type Request struct {
	// ProjectName names the environment directory and the canonical binary.
	ProjectName string
	SourceTree  string
	// PythonVersion and PreferWheels override the builder defaults when set.
	PythonVersion string
	PreferWheels  *bool
	ExtraLayers   []overlay.Layer
	MCPConfig     *MCPConfig
	Meta          *Meta
	// Env is passed to the installer.
	Env map[string]string
	// Rebuild ignores a cached environment with the same fingerprint.
	Rebuild bool
}

// Environment is a built environment. It is never mutated after Build
// returns it.
type Environment struct {
	Name string
	Root string
	// Binaries lists bin/ entries, sorted.
	Binaries      []string
	Canonical     string
	Plan          overlay.Plan
	Workspace     *workspace.Workspace
	PythonVersion string
	PreferWheels  bool
	// Packages is the installed closure, sorted by name.
	Packages    []InstallPackage
	Meta        *Meta
	Fingerprint string
	BuiltAt     time.Time
}

// Plan composes common ++ [source preference] ++ registered project layer
// ++ extras.
func (b *Builder) Plan(projectName string, preferWheels bool, extras []overlay.Layer) (overlay.Plan, error) {
	prefName := overlay.SourcePreferenceName(preferWheels)
	pref, ok := b.opts.Registry.Catalog().Get(prefName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", overlay.ErrUnknownLayer, prefName)
	}
	project := append([]overlay.Layer{pref}, b.opts.Registry.LayersFor(projectName)...)
	return overlay.Compose(b.opts.Common, project, extras), nil
}

// Build materializes req into <OutputRoot>/<ProjectName>. On failure no
// partial environment is left at the destination.
func (b *Builder) Build(ctx context.Context, req Request) (*Environment, error) {
	start := time.Now()
	name := req.ProjectName
	if err := checkProjectName(name); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseLoad, Err: err}
	}

	python := req.PythonVersion
	if python == "" {
		python = b.opts.PythonVersion
	}
	preferWheels := b.opts.PreferWheels
	if req.PreferWheels != nil {
		preferWheels = *req.PreferWheels
	}

	ws, err := workspace.Load(req.SourceTree)
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseLoad, Err: err}
	}

	plan, err := b.Plan(name, preferWheels, req.ExtraLayers)
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhasePlan, Err: err}
	}

	pkgs, err := selectPackages(ws, plan)
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhasePlan, Err: err}
	}

	fp, err := Fingerprint(ws.Root, FingerprintInput{
		Name:         name,
		Python:       python,
		PreferWheels: preferWheels,
		Plan:         plan,
		Packages:     pkgs,
		Env:          req.Env,
	})
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhasePlan, Err: err}
	}

	env := &Environment{
		Name:          name,
		Root:          filepath.Join(b.opts.OutputRoot, name),
		Canonical:     CanonicalName(b.opts.BinaryPrefix, name),
		Plan:          plan,
		Workspace:     ws,
		PythonVersion: python,
		PreferWheels:  preferWheels,
		Packages:      pkgs,
		Meta:          req.Meta,
		Fingerprint:   fp,
	}

	if !req.Rebuild {
		if prev, ok := b.reusable(fp, env.Root); ok {
			env.Binaries = prev.Binaries
			env.BuiltAt = prev.BuiltAt
			// metadata is not part of the fingerprint; refresh it in place
			if err := writeMetadata(env.Root, env, req.MCPConfig); err != nil {
				return nil, &BuildError{Project: name, Phase: PhaseMetadata, Err: err}
			}
			b.cache.Add(fp, env)
			logger.Info("environment up to date", logger.String("project", name), logger.String("root", env.Root))
			return env, nil
		}
	}

	logger.Info("building environment",
		logger.String("project", name),
		logger.String("python", python),
		logger.Strings("layers", plan.Names()),
		logger.Int("packages", len(pkgs)))

	if err := os.MkdirAll(b.opts.OutputRoot, 0o750); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseActivate, Err: err}
	}
	staging, err := os.MkdirTemp(b.opts.OutputRoot, "."+name+".staging-*")
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseActivate, Err: err}
	}
	activated := false
	defer func() {
		if !activated {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				logger.Warn("failed to remove staging directory", logger.String("path", staging), logger.Err(rmErr))
			}
		}
	}()
	// uv venv wants to create the directory itself
	if err := os.Remove(staging); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseActivate, Err: err}
	}

	if err := b.install(ctx, InstallRequest{
		Root:          staging,
		WorkDir:       ws.Root,
		PythonVersion: python,
		Packages:      pkgs,
		Env:           req.Env,
	}); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseInstall, Err: err}
	}

	env.BuiltAt = time.Now().UTC()

	binDir := filepath.Join(staging, "bin")
	if err := os.MkdirAll(binDir, 0o750); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseEntryPoints, Err: err}
	}
	linked, err := linkCanonical(binDir, name, env.Canonical, sortedKeys(ws.Manifest.Project.Scripts))
	if err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseEntryPoints, Err: err}
	}
	if linked != "" {
		logger.Debug("linked canonical binary", logger.String("canonical", env.Canonical), logger.String("target", linked))
	}
	if env.Binaries, err = listBinaries(binDir); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseEntryPoints, Err: err}
	}
	// the debug script lists itself
	env.Binaries = insertSorted(env.Binaries, DebugScriptName(env.Canonical))
	if err := writeDebugScript(binDir, env); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseEntryPoints, Err: err}
	}

	if err := writeMetadata(staging, env, req.MCPConfig); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseMetadata, Err: err}
	}

	if err := swapInto(staging, env.Root); err != nil {
		return nil, &BuildError{Project: name, Phase: PhaseActivate, Err: err}
	}
	activated = true

	b.cache.Add(fp, env)
	logger.Info("environment ready",
		logger.String("project", name),
		logger.String("root", env.Root),
		logger.String("canonical", env.Canonical),
		logger.Duration("took", time.Since(start)))
	return env, nil
}

// reusable finds an installed environment at root built from the inputs
// hashed into fp, first in the cache and then on disk.
func (b *Builder) reusable(fp, root string) (*Environment, bool) {
	if env, ok := b.cache.Get(fp); ok && env.Root == root && safeio.DirExists(root) {
		return env, true
	}
	rec, err := readRecord(root)
	if err != nil || rec.Fingerprint != fp {
		return nil, false
	}
	binaries, err := listBinaries(filepath.Join(root, "bin"))
	if err != nil {
		return nil, false
	}
	return &Environment{Root: root, Binaries: binaries, BuiltAt: rec.BuiltAt}, true
}

func (b *Builder) install(ctx context.Context, req InstallRequest) error {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	err := b.opts.Installer.Install(ctx, req)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out after %s: %w", ErrInstallFailed, b.opts.Timeout, err)
	}
	if !errors.Is(err, ErrInstallFailed) {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	return err
}

// selectPackages resolves the closure of the default dependency group plus
// the project itself against the planned package set.
func selectPackages(ws *workspace.Workspace, plan overlay.Plan) ([]InstallPackage, error) {
	planned := overlay.Apply(plan, ws.BasePackages())

	roots := append([]string{}, ws.Default...)
	project := ws.ProjectName()
	if _, ok := ws.Package(project); ok {
		roots = append(roots, project)
	}
	closure, err := ws.Closure(roots)
	if err != nil {
		return nil, err
	}

	out := make([]InstallPackage, 0, len(closure))
	for _, r := range closure {
		lp, _ := ws.Package(r.Name)
		if lp.Source.Kind() == "virtual" {
			// nothing to install for a virtual project
			continue
		}
		pkg, ok := planned[r.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", workspace.ErrNotLocked, r.Name)
		}
		out = append(out, InstallPackage{
			Package: pkg,
			Marker:  r.Marker,
			Spec:    installSpec(ws, lp, pkg, r.Marker),
		})
	}
	return out, nil
}

// installSpec renders the requirements-file line for one package.
func installSpec(ws *workspace.Workspace, lp *workspace.LockPackage, pkg overlay.Package, marker string) string {
	src := lp.Source
	localPath := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(ws.Root, p)
	}

	var spec string
	switch {
	case pkg.Format == overlay.FormatEditable && src.IsLocal():
		path := src.Editable + src.Directory + src.Virtual
		return "-e " + localPath(path)
	case src.IsLocal():
		spec = pkg.Name + " @ file://" + localPath(src.Editable+src.Directory)
	case src.Git != "":
		spec = pkg.Name + " @ git+" + src.Git
	case src.URL != "":
		spec = pkg.Name + " @ " + src.URL
	case src.Path != "":
		spec = pkg.Name + " @ file://" + localPath(src.Path)
	default:
		spec = pkg.Name + "==" + pkg.Version
	}
	if marker != "" {
		spec += " ; " + marker
	}
	return spec
}

// FingerprintInput is everything besides the source tree that decides what
// gets installed.
type FingerprintInput struct {
	Name         string
	Python       string
	PreferWheels bool
	Plan         overlay.Plan
	// Packages is the planned install set, after all layers.
	Packages []InstallPackage
	// Env is the installer environment.
	Env map[string]string
}

// Fingerprint hashes the source tree under root (minus ignored files) with
// in. Two builds with the same fingerprint install the same environment.
func Fingerprint(root string, in FingerprintInput) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "name=%s\npython=%s\nprefer-wheels=%t\n", in.Name, in.Python, in.PreferWheels)
	for _, l := range in.Plan.Names() {
		fmt.Fprintf(h, "layer=%s\n", l)
	}
	for _, k := range sortedKeys(in.Env) {
		fmt.Fprintf(h, "env=%s=%s\n", k, in.Env[k])
	}
	for _, p := range in.Packages {
		fmt.Fprintf(h, "package=%s\nversion=%s\nformat=%s\nmarker=%s\nspec=%s\n",
			p.Name, p.Version, p.Format, p.Marker, p.Spec)
		for _, r := range p.BuildSystem {
			fmt.Fprintf(h, "build-system=%s\n", r)
		}
		for _, k := range sortedKeys(p.Env) {
			fmt.Fprintf(h, "package-env=%s=%s\n", k, p.Env[k])
		}
		for _, k := range sortedKeys(p.Attrs) {
			fmt.Fprintf(h, "attr=%s=%s\n", k, p.Attrs[k])
		}
	}

	m, err := ignore.NewMatcher(root)
	if err != nil {
		return "", err
	}
	err = m.Walk(func(path, rel string, d fs.DirEntry) error {
		rel = filepath.ToSlash(rel)
		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "link=%s->%s\n", rel, link)
			return nil
		case !d.Type().IsRegular():
			return nil
		}
		fmt.Fprintf(h, "file=%s\n", rel)
		f, err := os.Open(path) // #nosec G304 -- walking the project tree
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(h, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", root, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// environmentRecord is the environment.json document.
type environmentRecord struct {
	Name          string          `json:"name"`
	Project       string          `json:"project"`
	Canonical     string          `json:"canonical"`
	PythonVersion string          `json:"pythonVersion"`
	PreferWheels  bool            `json:"preferWheels"`
	Layers        []string        `json:"layers"`
	Binaries      []string        `json:"binaries"`
	Packages      []packageRecord `json:"packages"`
	Meta          *Meta           `json:"meta,omitempty"`
	Fingerprint   string          `json:"fingerprint"`
	BuiltAt       time.Time       `json:"builtAt"`
	BuiltBy       string          `json:"builtBy"`
}

type packageRecord struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Format      overlay.Format    `json:"format"`
	Marker      string            `json:"marker,omitempty"`
	BuildSystem []string          `json:"buildSystem,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

func writeMetadata(root string, env *Environment, mcp *MCPConfig) error {
	dir := filepath.Join(root, metadataDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	rec := environmentRecord{
		Name:          env.Name,
		Project:       env.Workspace.ProjectName(),
		Canonical:     env.Canonical,
		PythonVersion: env.PythonVersion,
		PreferWheels:  env.PreferWheels,
		Layers:        env.Plan.Names(),
		Binaries:      env.Binaries,
		Packages:      make([]packageRecord, 0, len(env.Packages)),
		Meta:          env.Meta,
		Fingerprint:   env.Fingerprint,
		BuiltAt:       env.BuiltAt,
		BuiltBy:       "mcpenv " + buildinfo.Version(),
	}
	for _, p := range env.Packages {
		rec.Packages = append(rec.Packages, packageRecord{
			Name:        p.Name,
			Version:     p.Version,
			Format:      p.Format,
			Marker:      p.Marker,
			BuildSystem: p.BuildSystem,
			Env:         p.Env,
		})
	}
	if err := writeJSON(filepath.Join(dir, EnvironmentFile), rec); err != nil {
		return err
	}

	mcpPath := filepath.Join(dir, MCPConfigFile)
	if mcp == nil {
		if err := os.Remove(mcpPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	command := filepath.Join(env.Root, "bin", env.Canonical)
	return writeJSON(mcpPath, mcpClientConfig(env.Name, command, mcp))
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return safeio.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

func readRecord(root string) (*environmentRecord, error) {
	data, err := os.ReadFile(filepath.Join(root, metadataDir, EnvironmentFile)) // #nosec G304 -- environment metadata
	if err != nil {
		return nil, err
	}
	var rec environmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// swapInto moves staging to dest, replacing any previous environment.
func swapInto(staging, dest string) error {
	var old string
	if _, err := os.Lstat(dest); err == nil {
		old = staging + ".old"
		if err := os.Rename(dest, old); err != nil {
			return fmt.Errorf("move previous environment aside: %w", err)
		}
	}
	if err := os.Rename(staging, dest); err != nil {
		if old != "" {
			if rbErr := os.Rename(old, dest); rbErr != nil {
				logger.Error("failed to restore previous environment", logger.String("path", dest), logger.Err(rbErr))
			}
		}
		return fmt.Errorf("activate environment: %w", err)
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			logger.Warn("failed to remove previous environment", logger.String("path", old), logger.Err(err))
		}
	}
	return nil
}

func checkProjectName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: project name %q", ErrInvalidRequest, name)
	}
	return nil
}

func insertSorted(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	out := append(list, s)
	for i := len(out) - 1; i > 0 && out[i] < out[i-1]; i-- {
		out[i], out[i-1] = out[i-1], out[i]
	}
	return out
}
