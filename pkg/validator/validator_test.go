package validator

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/mcpenv/pkg/builder"
	"github.com/fulmenhq/mcpenv/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	return root
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		issues []string
	}{
		{"complete src layout", []string{"pyproject.toml", "uv.lock", "src/pkg/__init__.py"}, nil},
		{"root package marker", []string{"pyproject.toml", "poetry.lock", "__init__.py"}, nil},
		{"missing lock", []string{"pyproject.toml", "src/pkg/__init__.py"}, []string{CheckLockFile}},
		{"empty tree", nil, []string{CheckManifest, CheckLockFile, CheckSourceCode}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tree(t, tt.files...))
			assert.Equal(t, tt.issues, r.Issues)
			assert.Equal(t, len(tt.issues) == 0, r.IsValid())
			assert.Len(t, r.Suggestions, len(tt.issues))
			assert.Len(t, r.Checks, 3)
		})
	}
}

func TestMissingLockSuggestion(t *testing.T) {
	r := Validate(tree(t, "pyproject.toml", "src/a.py"))
	require.Len(t, r.Suggestions, 1)
	assert.Contains(t, r.Suggestions[0], "uv lock")
}

func TestSuggestionsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range []string{CheckManifest, CheckLockFile, CheckSourceCode, CheckCanonicalBinary, CheckDebugScript} {
		s := Suggestion(c)
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], c)
		seen[s] = true
	}
	assert.Contains(t, Suggestion("hasUnicorns"), "hasUnicorns")
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Validate(tree(t, "pyproject.toml", "uv.lock", "src/x.py")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isValid":true,"issues":[],"suggestions":[]}`, string(data))

	data, err = json.Marshal(Validate(tree(t, "pyproject.toml", "src/x.py")))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, false, doc["isValid"])
	assert.Equal(t, []interface{}{"hasLockFile"}, doc["issues"])
}

func TestValidateEnvironment(t *testing.T) {
	src := tree(t, "pyproject.toml", "uv.lock", "src/weather/__init__.py")
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "weather"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Symlink("weather", filepath.Join(bin, "mcp-weather")))

	env := &builder.Environment{
		Name:      "weather",
		Root:      root,
		Canonical: "mcp-weather",
		Workspace: &workspace.Workspace{Root: src},
	}

	r := ValidateEnvironment(env)
	assert.Equal(t, root, r.Path)
	assert.Equal(t, []string{CheckDebugScript}, r.Issues)
	assert.Len(t, r.Checks, 5)

	require.NoError(t, os.WriteFile(filepath.Join(bin, "debug-mcp-weather"), []byte("#!/bin/sh\n"), 0o755))
	assert.True(t, ValidateEnvironment(env).IsValid())

	require.NoError(t, os.Chmod(filepath.Join(bin, "weather"), 0o644))
	assert.Equal(t, []string{CheckCanonicalBinary}, ValidateEnvironment(env).Issues)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Validate(tree(t, "pyproject.toml"))))
	out := buf.String()
	assert.Contains(t, out, "[ok  ] hasManifest")
	assert.Contains(t, out, "[FAIL] hasLockFile")
	assert.Contains(t, out, "suggestions:")
}
