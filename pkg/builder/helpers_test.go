package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const weatherManifest = `[project]
name = "weather"
version = "1.0.0"
requires-python = ">=3.10"
dependencies = [
  "mcp==1.2.0",
  "pywin32==306 ; sys_platform == 'win32'",
]

[project.scripts]
weather = "weather.main:run"

[build-system]
requires = ["hatchling"]
build-backend = "hatchling.build"

[tool.uv]
dev-dependencies = ["pytest==8.0.0"]
`

const weatherLock = `version = 1
requires-python = ">=3.10"

[[package]]
name = "anyio"
version = "4.4.0"
source = { registry = "https://pypi.org/simple" }
sdist = { url = "https://files/anyio.tar.gz", hash = "sha256:a0" }
wheels = [{ url = "https://files/anyio.whl", hash = "sha256:aa" }]

[[package]]
name = "legacy-dep"
version = "0.9"
source = { registry = "https://pypi.org/simple" }
sdist = { url = "https://files/legacy-dep.tar.gz", hash = "sha256:bb" }

[[package]]
name = "mcp"
version = "1.2.0"
source = { registry = "https://pypi.org/simple" }
dependencies = [{ name = "anyio" }, { name = "legacy-dep" }]
wheels = [{ url = "https://files/mcp.whl", hash = "sha256:cc" }]

[[package]]
name = "pytest"
version = "8.0.0"
source = { registry = "https://pypi.org/simple" }
wheels = [{ url = "https://files/pytest.whl", hash = "sha256:dd" }]

[[package]]
name = "pywin32"
version = "306"
source = { registry = "https://pypi.org/simple" }
wheels = [{ url = "https://files/pywin32.whl", hash = "sha256:ee" }]

[[package]]
name = "weather"
version = "1.0.0"
source = { editable = "." }
dependencies = [
  { name = "mcp" },
  { name = "pywin32", marker = "sys_platform == 'win32'" },
]

[package.dev-dependencies]
dev = [{ name = "pytest" }]
`

func writeTree(t *testing.T, root string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func weatherTree(t *testing.T) string {
	t.Helper()
	return writeTree(t, t.TempDir(), map[string]string{
		"pyproject.toml":          weatherManifest,
		"uv.lock":                 weatherLock,
		"src/weather/__init__.py": "",
		"src/weather/main.py":     "def run():\n    pass\n",
	})
}

// fakeInstaller creates a minimal environment layout instead of running uv.
type fakeInstaller struct {
	// Binaries are created in bin/ of every environment.
	Binaries []string
	Err      error
	// Block waits for the context to end before returning its error.
	Block bool

	mu       sync.Mutex
	requests []InstallRequest
}

func (f *fakeInstaller) Install(ctx context.Context, req InstallRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(req.Root, "bin"), 0o755); err != nil {
		return err
	}
	if f.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.Err != nil {
		return f.Err
	}
	for _, b := range append([]string{"python"}, f.Binaries...) {
		if err := os.WriteFile(filepath.Join(req.Root, "bin", b), []byte("#!/bin/sh\n"), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeInstaller) Requests() []InstallRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]InstallRequest(nil), f.requests...)
}

var errBoom = errors.New("boom")

func newTestBuilder(t *testing.T, inst Installer, mutate ...func(*Options)) (*Builder, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "result")
	opts := Options{
		OutputRoot:   out,
		PreferWheels: true,
		Installer:    inst,
	}
	for _, m := range mutate {
		m(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b, out
}
