package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta(t *testing.T) {
	m, err := ParseMeta([]byte(metaYAML), "meta.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Alpha server", m.Description)
	assert.Equal(t, "3.11", m.PythonVersion)
	require.NotNil(t, m.PreferWheels)
	assert.False(t, *m.PreferWheels)
	require.NotNil(t, m.MCP)
	assert.Equal(t, []string{"--stdio"}, m.MCP.Args)

	empty, err := ParseMeta(nil, "meta.yaml")
	require.NoError(t, err)
	assert.Nil(t, empty.PreferWheels)
	assert.Nil(t, empty.MCP)
}

func TestParseMetaRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, doc, field string
	}{
		{"bad python", "python_version: three\n", "python_version"},
		{"unknown key", "maintainer: me\n", "root"},
		{"bad mcp env", "mcp:\n  env:\n    DEBUG: 1\n", "mcp.env.DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMeta([]byte(tt.doc), "meta.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestMCPClientConfig(t *testing.T) {
	cfg := mcpClientConfig("weather", "/envs/weather/bin/mcp-weather", &MCPConfig{})
	entry := cfg["mcpServers"]["weather"]
	assert.Equal(t, "/envs/weather/bin/mcp-weather", entry.Command)
	assert.NotNil(t, entry.Args, "args always serialize as a list")
	assert.Nil(t, entry.Env)
}
