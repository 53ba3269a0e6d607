package manifest

import (
	"regexp"
	"strings"
)

// DependencySpec is a name plus a version constraint; "*" is the wildcard.
type DependencySpec struct {
	Name       string
	Constraint string
}

// Wildcard is the constraint meaning "any version".
const Wildcard = "*"

// IsWildcard reports whether the spec has no pin.
func (d DependencySpec) IsWildcard() bool {
	return d.Constraint == "" || d.Constraint == Wildcard
}

// Requirement formats the spec as a PEP 508 string: "name" for the
// wildcard, "name==constraint" otherwise.
func (d DependencySpec) Requirement() string {
	if d.IsWildcard() {
		return d.Name
	}
	return d.Name + "==" + d.Constraint
}

var (
	requirementNameRe = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)
	extrasRe          = regexp.MustCompile(`^\s*\[([^\]]*)\]`)
	separatorRunRe    = regexp.MustCompile(`[-_.]+`)
)

// Requirement is the part of a PEP 508 string mcpenv acts on.
type Requirement struct {
	Name   string
	Extras []string
	Marker string
}

// ParseRequirement splits req into name, extras and environment marker.
// Version specifiers and URLs are not retained.
func ParseRequirement(req string) Requirement {
	r := Requirement{Name: RequirementName(req)}
	if r.Name == "" {
		return r
	}
	body, marker, found := strings.Cut(req, ";")
	if found {
		r.Marker = strings.TrimSpace(marker)
	}
	rest := strings.TrimSpace(body)[len(r.Name):]
	if m := extrasRe.FindStringSubmatch(rest); m != nil {
		for _, e := range strings.Split(m[1], ",") {
			if e = strings.TrimSpace(e); e != "" {
				r.Extras = append(r.Extras, NormalizeName(e))
			}
		}
	}
	return r
}

// RequirementName extracts the distribution name from a PEP 508
// requirement string, or "" when there is none.
func RequirementName(req string) string {
	m := requirementNameRe.FindStringSubmatch(req)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeName applies PEP 503 name normalization.
func NormalizeName(name string) string {
	return strings.ToLower(separatorRunRe.ReplaceAllString(strings.TrimSpace(name), "-"))
}
