package workspace

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Lock is the subset of uv.lock the builder consumes.
type Lock struct {
	Version        int           `toml:"version"`
	RequiresPython string        `toml:"requires-python"`
	Packages       []LockPackage `toml:"package"`
}

// LockPackage is one [[package]] entry.
type LockPackage struct {
	Name                 string                      `toml:"name"`
	Version              string                      `toml:"version"`
	Source               LockSource                  `toml:"source"`
	Dependencies         []LockDependency            `toml:"dependencies"`
	OptionalDependencies map[string][]LockDependency `toml:"optional-dependencies"`
	DevDependencies      map[string][]LockDependency `toml:"dev-dependencies"`
	Sdist                *LockArtifact               `toml:"sdist"`
	Wheels               []LockArtifact              `toml:"wheels"`
}

// LockSource records where a package comes from; exactly one field is set.
type LockSource struct {
	Registry  string `toml:"registry"`
	Editable  string `toml:"editable"`
	Virtual   string `toml:"virtual"`
	Directory string `toml:"directory"`
	Git       string `toml:"git"`
	URL       string `toml:"url"`
	Path      string `toml:"path"`
}

// Kind names the populated source field.
func (s LockSource) Kind() string {
	switch {
	case s.Registry != "":
		return "registry"
	case s.Editable != "":
		return "editable"
	case s.Virtual != "":
		return "virtual"
	case s.Directory != "":
		return "directory"
	case s.Git != "":
		return "git"
	case s.URL != "":
		return "url"
	case s.Path != "":
		return "path"
	default:
		return "unknown"
	}
}

// IsLocal reports whether the package is built from a local tree.
func (s LockSource) IsLocal() bool {
	switch s.Kind() {
	case "editable", "virtual", "directory":
		return true
	}
	return false
}

// LockDependency is an edge in the lock graph.
type LockDependency struct {
	Name   string   `toml:"name"`
	Extra  []string `toml:"extra"`
	Marker string   `toml:"marker"`
}

// LockArtifact is a downloadable sdist or wheel.
type LockArtifact struct {
	URL  string `toml:"url"`
	Path string `toml:"path"`
	Hash string `toml:"hash"`
	Size int64  `toml:"size"`
}

// ParseLock decodes uv.lock content.
func ParseLock(data []byte) (*Lock, error) {
	var l Lock
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("invalid uv.lock: %w", err)
	}
	return &l, nil
}

// LoadLock reads and decodes the lock file at path.
func LoadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- lock file inside the project tree
	if err != nil {
		return nil, err
	}
	l, err := ParseLock(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}
