// Package workspace loads a PEP 621 project tree and its uv.lock into a
// read-only Workspace.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fulmenhq/mcpenv/pkg/manifest"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
)

// File names read from a project tree.
const (
	ManifestFile = "pyproject.toml"
	LockFile     = "uv.lock"
)

var (
	// ErrNoManifest indicates the tree has no pyproject.toml
	ErrNoManifest = errors.New("no pyproject.toml")

	// ErrNoLock indicates the tree has no uv.lock
	ErrNoLock = errors.New("no uv.lock")

	// ErrLegacyManifest indicates pyproject.toml is still in Poetry form
	ErrLegacyManifest = errors.New("manifest is in legacy (Poetry) form; convert it first")

	// ErrNotLocked indicates a dependency missing from uv.lock
	ErrNotLocked = errors.New("dependency not in uv.lock")
)

// Workspace is a resolved project: manifest, lock data and dependency
// groups. It is read-only after Load.
type Workspace struct {
	Root     string
	Manifest *manifest.Target
	Lock     *Lock

	// Default holds the project's runtime requirements.
	Default []string
	// Dev holds development requirements.
	Dev []string
	// Optional maps extra names to their requirements.
	Optional map[string][]string

	packages map[string]*LockPackage
}

// Load reads root/pyproject.toml and root/uv.lock.
func Load(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	manifestPath := filepath.Join(abs, ManifestFile)
	if !safeio.FileExists(manifestPath) {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, abs)
	}
	doc, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if manifest.DetectDialect(doc) == manifest.DialectLegacy {
		return nil, fmt.Errorf("%s: %w", manifestPath, ErrLegacyManifest)
	}
	target, err := manifest.LoadTarget(manifestPath)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(abs, LockFile)
	if !safeio.FileExists(lockPath) {
		return nil, fmt.Errorf("%w in %s", ErrNoLock, abs)
	}
	lock, err := LoadLock(lockPath)
	if err != nil {
		return nil, err
	}

	return New(abs, target, lock), nil
}

// New assembles a Workspace from already-decoded parts.
func New(root string, target *manifest.Target, lock *Lock) *Workspace {
	w := &Workspace{
		Root:     root,
		Manifest: target,
		Lock:     lock,
		Default:  append([]string{}, target.Project.Dependencies...),
		Dev:      append([]string{}, target.DevDependencies()...),
		Optional: map[string][]string{},
		packages: make(map[string]*LockPackage, len(lock.Packages)),
	}
	for extra, reqs := range target.Project.OptionalDependencies {
		w.Optional[manifest.NormalizeName(extra)] = append([]string{}, reqs...)
	}
	for i := range lock.Packages {
		p := &lock.Packages[i]
		w.packages[manifest.NormalizeName(p.Name)] = p
	}
	return w
}

// ProjectName returns the normalized project name.
func (w *Workspace) ProjectName() string {
	return manifest.NormalizeName(w.Manifest.Project.Name)
}

// Package returns the lock entry for a normalized name.
func (w *Workspace) Package(name string) (*LockPackage, bool) {
	p, ok := w.packages[manifest.NormalizeName(name)]
	return p, ok
}

// BasePackages converts the lock into the package set overlay layers
// start from. Packages with wheels default to wheel installs; the project
// carries its declared build requirements.
func (w *Workspace) BasePackages() overlay.PackageSet {
	project := w.ProjectName()
	set := make(overlay.PackageSet, len(w.packages))
	for name, lp := range w.packages {
		pkg := overlay.Package{
			Name:     name,
			Version:  lp.Version,
			HasWheel: len(lp.Wheels) > 0,
			HasSdist: lp.Sdist != nil || lp.Source.IsLocal(),
			Attrs:    map[string]string{overlay.AttrSource: lp.Source.Kind()},
		}
		if pkg.HasWheel {
			pkg.Format = overlay.FormatWheel
		} else {
			pkg.Format = overlay.FormatSdist
		}
		for _, d := range lp.Dependencies {
			pkg.Dependencies = append(pkg.Dependencies, manifest.NormalizeName(d.Name))
		}
		if name == project {
			pkg.Attrs[overlay.AttrWorkspaceMember] = "true"
			pkg.BuildSystem = append([]string(nil), w.Manifest.BuildSystem.Requires...)
		}
		set[name] = pkg
	}
	return set
}

// Requirement is one package of an install closure. Marker is empty when
// the package is needed unconditionally.
type Requirement struct {
	Name   string
	Marker string
}

// Closure returns the transitive lock closure of roots (PEP 508 strings or
// bare names), sorted by name. Extras on roots and lock edges pull in the
// matching optional dependencies.
func (w *Workspace) Closure(roots []string) ([]Requirement, error) {
	type edge struct {
		name   string
		extras []string
		// conds are the markers that must all hold to reach name
		conds  []string
		marker string
	}
	newEdge := func(name string, extras, conds []string) edge {
		return edge{name: manifest.NormalizeName(name), extras: extras, conds: conds, marker: andMarkers(conds)}
	}

	unconditional := map[string]bool{}
	markers := map[string][]string{}
	expanded := map[string]bool{}
	queue := make([]edge, 0, len(roots))
	for _, r := range roots {
		req := manifest.ParseRequirement(r)
		if req.Name == "" {
			return nil, fmt.Errorf("invalid requirement %q", r)
		}
		queue = append(queue, newEdge(req.Name, req.Extras, addCond(nil, req.Marker)))
	}

	// a dependency is reached only when its parent's markers and its own
	// marker all hold; conds is a set, so cycles add nothing new
	follow := func(parent edge, deps []LockDependency) {
		for _, d := range deps {
			queue = append(queue, newEdge(d.Name, d.Extra, addCond(parent.conds, d.Marker)))
		}
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		lp, ok := w.packages[e.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotLocked, e.name)
		}

		if e.marker == "" {
			unconditional[e.name] = true
		} else if !contains(markers[e.name], e.marker) {
			markers[e.name] = append(markers[e.name], e.marker)
		}

		key := e.name + "\x00" + e.marker
		if !expanded[key] {
			expanded[key] = true
			follow(e, lp.Dependencies)
		}
		for _, extra := range e.extras {
			extraKey := key + "\x00" + manifest.NormalizeName(extra)
			if expanded[extraKey] {
				continue
			}
			expanded[extraKey] = true
			follow(e, extraDeps(lp, extra))
		}
	}

	names := make([]string, 0, len(unconditional)+len(markers))
	for n := range unconditional {
		names = append(names, n)
	}
	for n := range markers {
		if !unconditional[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	out := make([]Requirement, 0, len(names))
	for _, n := range names {
		req := Requirement{Name: n}
		if !unconditional[n] {
			req.Marker = joinMarkers(markers[n])
		}
		out = append(out, req)
	}
	return out, nil
}

func extraDeps(lp *LockPackage, extra string) []LockDependency {
	want := manifest.NormalizeName(extra)
	for k, deps := range lp.OptionalDependencies {
		if manifest.NormalizeName(k) == want {
			return deps
		}
	}
	return nil
}

// addCond returns conds plus m as a new sorted set.
func addCond(conds []string, m string) []string {
	m = strings.TrimSpace(m)
	if m == "" || contains(conds, m) {
		return conds
	}
	out := append(append(make([]string, 0, len(conds)+1), conds...), m)
	sort.Strings(out)
	return out
}

func andMarkers(conds []string) string {
	if len(conds) == 1 {
		return conds[0]
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, "("+c+")")
	}
	return strings.Join(parts, " and ")
}

func joinMarkers(ms []string) string {
	if len(ms) == 1 {
		return ms[0]
	}
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		parts = append(parts, "("+m+")")
	}
	return strings.Join(parts, " or ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
