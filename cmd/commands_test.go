package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	out, err := execRoot(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mcpenv "))

	out, err = execRoot(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "goVersion")
}

func TestConvertDryRun(t *testing.T) {
	exec := fakeUV(t)
	src := poetryTree(t)

	out, err := execRoot(t, "convert", src, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `name = "weather"`)
	assert.Contains(t, out, "requires-python")
	assert.Empty(t, exec.Calls())

	_, err = os.Stat(src + "-uv")
	assert.True(t, os.IsNotExist(err))
}

func TestConvertWritesProject(t *testing.T) {
	fakeUV(t)
	src := poetryTree(t)
	dst := filepath.Join(t.TempDir(), "weather-uv")

	out, err := execRoot(t, "convert", src, "--out", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "2 locked packages")

	assert.FileExists(t, filepath.Join(dst, "uv.lock"))
	assert.NoFileExists(t, filepath.Join(dst, "poetry.lock"))
	assert.FileExists(t, filepath.Join(src, "poetry.lock"), "source tree must be left alone")
}

func TestConvertRejectsModernProject(t *testing.T) {
	fakeUV(t)
	src := writeTree(t, t.TempDir(), map[string]string{
		"pyproject.toml": "[project]\nname = \"weather\"\n",
	})

	_, err := execRoot(t, "convert", src, "--dry-run")
	require.Error(t, err)
	assert.Equal(t, exitcode.ConversionError, exitCodeFor(err))
}

func TestValidateCommand(t *testing.T) {
	fakeUV(t)
	src := poetryTree(t)
	dst := filepath.Join(t.TempDir(), "weather-uv")
	_, err := execRoot(t, "convert", src, "--out", dst)
	require.NoError(t, err)

	out, err := execRoot(t, "validate", dst, "--format", "json")
	require.NoError(t, err)
	var res struct {
		IsValid     bool     `json:"isValid"`
		Issues      []string `json:"issues"`
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Issues)

	bare := writeTree(t, t.TempDir(), map[string]string{
		"pyproject.toml": "[project]\nname = \"bare\"\n",
	})
	out, err = execRoot(t, "validate", bare, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, exitcode.ValidationError, exitCodeFor(err))
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Issues, "hasLockFile")
	assert.Len(t, res.Suggestions, len(res.Issues))

	_, err = execRoot(t, "validate", dst, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, exitcode.ConfigError, exitCodeFor(err))
}

func TestPlanCommand(t *testing.T) {
	fakeUV(t)
	out, err := execRoot(t, "plan", "weather")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "default-build-system")
	assert.Contains(t, lines[1], "editable-project")
	assert.Contains(t, lines[2], "prefer-wheels")

	extra := writeTree(t, t.TempDir(), map[string]string{
		"extra.yaml": "layers:\n  - name: pin-mcp\n    packages: [mcp]\n    set:\n      version: 1.3.0\n",
	})
	out, err = execRoot(t, "plan", "weather", "--prefer-wheels=false", "--layers", filepath.Join(extra, "extra.yaml"))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "prefer-sdist")
	assert.Contains(t, lines[3], "pin-mcp")
}

func TestBuildCommand(t *testing.T) {
	exec := fakeUV(t)
	src := poetryTree(t)
	dst := filepath.Join(t.TempDir(), "weather-uv")
	_, err := execRoot(t, "convert", src, "--out", dst)
	require.NoError(t, err)

	outRoot := t.TempDir()
	out, err := execRoot(t, "--output-root", outRoot, "build", "weather", dst, "--python", "3.11")
	require.NoError(t, err)
	assert.Contains(t, out, "built weather -> "+filepath.Join(outRoot, "weather"))
	assert.Contains(t, out, "canonical: mcp-weather")

	bin := filepath.Join(outRoot, "weather", "bin")
	target, err := os.Readlink(filepath.Join(bin, "mcp-weather"))
	require.NoError(t, err)
	assert.Equal(t, "weather", target)
	assert.FileExists(t, filepath.Join(bin, "debug-mcp-weather"))

	var venv []string
	for _, c := range exec.Calls() {
		if c.Args[0] == "venv" {
			venv = c.Args
		}
	}
	require.NotNil(t, venv)
	assert.Contains(t, venv, "3.11")
}

func TestBuildCommandMissingLock(t *testing.T) {
	fakeUV(t)
	src := poetryTree(t)

	_, err := execRoot(t, "--output-root", t.TempDir(), "build", "weather", src)
	require.Error(t, err)
	assert.Equal(t, exitcode.BuildError, exitCodeFor(err))
}

func TestBuildAllCommand(t *testing.T) {
	fakeUV(t)
	servers := t.TempDir()
	writeTree(t, filepath.Join(servers, "weather"), map[string]string{
		"pyproject.toml":          poetryManifest,
		"poetry.lock":             "# poetry\n",
		"src/weather/__init__.py": "",
	})
	writeTree(t, filepath.Join(servers, "broken"), map[string]string{
		"pyproject.toml": "[project]\nname = \"broken\"\nversion = \"0.1.0\"\n",
	})
	outRoot := t.TempDir()

	out, err := execRoot(t, "--output-root", outRoot, "build-all", servers, "--format", "json", "--workers", "2")
	require.Error(t, err)
	assert.Equal(t, exitcode.BatchFailure, exitCodeFor(err))

	var summary struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
		Details    struct {
			Successful []string `json:"successful"`
			Failed     []string `json:"failed"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, []string{"weather"}, summary.Details.Successful)
	assert.Equal(t, []string{"broken"}, summary.Details.Failed)
	assert.DirExists(t, filepath.Join(outRoot, "weather"))
}

func TestBuildAllEmptyRoot(t *testing.T) {
	fakeUV(t)
	_, err := execRoot(t, "--output-root", t.TempDir(), "build-all", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, exitcode.BatchFailure, exitCodeFor(err))
}
