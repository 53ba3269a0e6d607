// Package overlay composes ordered package build-override layers into a
// build plan and applies that plan to a package set.
package overlay

import "sort"

// Format is how a package is materialized.
type Format string

const (
	FormatWheel    Format = "wheel"
	FormatSdist    Format = "sdist"
	FormatEditable Format = "editable"
)

// Attrs keys set by the workspace loader.
const (
	// AttrWorkspaceMember marks the project being built.
	AttrWorkspaceMember = "workspace-member"
	// AttrSource records the lock source kind (registry, editable, virtual, ...).
	AttrSource = "source"
)

// Package is the build description of one distribution.
type Package struct {
	// Name is PEP 503 normalized and is the key in a PackageSet.
	Name         string
	Version      string
	Format       Format
	HasWheel     bool
	HasSdist     bool
	BuildSystem  []string
	Dependencies []string
	Env          map[string]string
	Attrs        map[string]string
}

// Clone returns a deep copy.
func (p Package) Clone() Package {
	c := p
	c.BuildSystem = cloneStrings(p.BuildSystem)
	c.Dependencies = cloneStrings(p.Dependencies)
	c.Env = cloneMap(p.Env)
	c.Attrs = cloneMap(p.Attrs)
	return c
}

// IsWorkspaceMember reports whether the package is the project itself.
func (p Package) IsWorkspaceMember() bool {
	return p.Attrs[AttrWorkspaceMember] == "true"
}

// PackageSet maps normalized names to packages. Sets handed to layers are
// read-only; Apply always builds new sets.
type PackageSet map[string]Package

// Names returns the package names, sorted.
func (s PackageSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the set.
func (s PackageSet) Clone() PackageSet {
	out := make(PackageSet, len(s))
	for n, p := range s {
		out[n] = p.Clone()
	}
	return out
}

// Sorted returns the packages ordered by name.
func (s PackageSet) Sorted() []Package {
	out := make([]Package, 0, len(s))
	for _, n := range s.Names() {
		out = append(out, s[n])
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// mergeUnion appends the entries of add missing from base, keeping order.
func mergeUnion(base, add []string) []string {
	out := cloneStrings(base)
	seen := make(map[string]bool, len(base)+len(add))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}
