package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/mcpenv/internal/schema"
	"gopkg.in/yaml.v3"
)

// Per-server files read by batch builds.
const (
	MetaFileName = "meta.yaml"
	EnvFileName  = "build.env"
)

// Meta is optional server metadata recorded with the environment.
type Meta struct {
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	Homepage      string     `yaml:"homepage,omitempty" json:"homepage,omitempty"`
	Owner         string     `yaml:"owner,omitempty" json:"owner,omitempty"`
	Tags          []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	PythonVersion string     `yaml:"python_version,omitempty" json:"pythonVersion,omitempty"`
	PreferWheels  *bool      `yaml:"prefer_wheels,omitempty" json:"preferWheels,omitempty"`
	MCP           *MCPConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`
}

// MCPConfig is how an MCP client should launch the server.
type MCPConfig struct {
	Args []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env  map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// ParseMeta validates data against the server metadata schema and decodes it.
func ParseMeta(data []byte, source string) (*Meta, error) {
	res, err := schema.ValidateYAML(data, schema.ServerMetaV1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := res.Err(source); err != nil {
		return nil, err
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &m, nil
}

// LoadMeta reads a meta.yaml file.
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- server directory file
	if err != nil {
		return nil, err
	}
	return ParseMeta(data, path)
}

// mcpServerEntry is one server in an MCP client configuration.
type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// mcpClientConfig renders the mcpServers block for a built environment.
func mcpClientConfig(name, command string, cfg *MCPConfig) map[string]map[string]mcpServerEntry {
	entry := mcpServerEntry{Command: command, Args: []string{}}
	if len(cfg.Args) > 0 {
		entry.Args = append(entry.Args, cfg.Args...)
	}
	if len(cfg.Env) > 0 {
		entry.Env = cfg.Env
	}
	return map[string]map[string]mcpServerEntry{
		"mcpServers": {name: entry},
	}
}
