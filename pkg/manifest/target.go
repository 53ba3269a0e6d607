package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Target is a PEP 621 manifest as written by the converter and read by the
// workspace loader.
type Target struct {
	Project          Project             `toml:"project"`
	BuildSystem      BuildSystem         `toml:"build-system"`
	DependencyGroups map[string][]string `toml:"dependency-groups,omitempty"`
	Tool             *TargetTool         `toml:"tool,omitempty"`
}

// Project is the [project] table.
type Project struct {
	Name                 string              `toml:"name"`
	Version              string              `toml:"version"`
	Description          string              `toml:"description"`
	Authors              []Author            `toml:"authors,inline"`
	License              *string             `toml:"license"`
	Readme               *string             `toml:"readme"`
	RequiresPython       string              `toml:"requires-python"`
	Dependencies         []string            `toml:"dependencies,multiline"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies,omitempty"`
	Scripts              map[string]string   `toml:"scripts,omitempty"`
}

// Author is a PEP 621 author entry.
type Author struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// BuildSystem is the [build-system] table.
type BuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

// TargetTool holds the tool tables mcpenv reads or writes.
type TargetTool struct {
	UV *UVTool `toml:"uv,omitempty"`
}

// UVTool is [tool.uv].
type UVTool struct {
	DevDependencies []string `toml:"dev-dependencies,multiline"`
}

// DevDependencies returns [tool.uv] dev-dependencies, falling back to the
// "dev" dependency group.
func (t *Target) DevDependencies() []string {
	if t.Tool != nil && t.Tool.UV != nil && len(t.Tool.UV.DevDependencies) > 0 {
		return t.Tool.UV.DevDependencies
	}
	return t.DependencyGroups["dev"]
}

// Encode renders the manifest as TOML.
func (t *Target) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(false)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseTarget decodes a PEP 621 manifest.
func ParseTarget(data []byte) (*Target, error) {
	var t Target
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}
	if t.Project.Name == "" {
		return nil, fmt.Errorf("manifest has no [project] name")
	}
	return &t, nil
}

// LoadTarget reads and decodes the manifest at path.
func LoadTarget(path string) (*Target, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller-supplied manifest path
	if err != nil {
		return nil, err
	}
	t, err := ParseTarget(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
