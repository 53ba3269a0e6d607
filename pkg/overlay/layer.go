package overlay

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/mcpenv/pkg/manifest"
)

// Predicate selects the packages a layer rewrites.
type Predicate func(pkg Package) bool

// RewriteFunc returns the new description of pkg. prev is the set as it
// stood before the layer ran and must not be modified.
type RewriteFunc func(prev PackageSet, pkg Package) Package

// Layer is a named, immutable package transformation.
type Layer struct {
	Name        string
	Description string
	// Targets selects packages; nil selects every package.
	Targets Predicate
	Rewrite RewriteFunc
}

func (l Layer) targets(pkg Package) bool {
	return l.Targets == nil || l.Targets(pkg)
}

// Plan is an ordered list of layers. Later layers observe and may shadow
// the output of earlier ones.
type Plan []Layer

// Names lists the layer names in application order.
func (p Plan) Names() []string {
	names := make([]string, 0, len(p))
	for _, l := range p {
		names = append(names, l.Name)
	}
	return names
}

// Compose concatenates common, project and extra layers in that order.
// Duplicates are kept and every instance applies.
func Compose(common, project, extra []Layer) Plan {
	plan := make(Plan, 0, len(common)+len(project)+len(extra))
	plan = append(plan, common...)
	plan = append(plan, project...)
	plan = append(plan, extra...)
	return plan
}

// Apply runs every layer over base in plan order, visiting packages sorted
// by name. base is not modified.
func Apply(plan Plan, base PackageSet) PackageSet {
	current := base.Clone()
	for _, layer := range plan {
		if layer.Rewrite == nil {
			continue
		}
		prev := current
		next := prev.Clone()
		for _, name := range prev.Names() {
			pkg := prev[name]
			if !layer.targets(pkg) {
				continue
			}
			out := layer.Rewrite(prev, pkg.Clone())
			// layers cannot rename packages
			out.Name = name
			next[name] = out
		}
		current = next
	}
	return current
}

// MatchNames selects packages whose normalized name is one of names.
func MatchNames(names ...string) Predicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[manifest.NormalizeName(n)] = true
	}
	return func(pkg Package) bool { return set[pkg.Name] }
}

// MatchPatterns selects packages whose normalized name matches any of the
// doublestar glob patterns. Invalid patterns never match.
func MatchPatterns(patterns ...string) Predicate {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		normalized = append(normalized, manifest.NormalizeName(p))
	}
	return func(pkg Package) bool {
		for _, p := range normalized {
			if ok, err := doublestar.Match(p, pkg.Name); err == nil && ok {
				return true
			}
		}
		return false
	}
}
