package ignore

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewMatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "# Test gitignore\n*.log\ndist/\n")
	writeFile(t, filepath.Join(root, IgnoreFile), "# overrides\n*.backup\nfixtures/\n")

	m, err := NewMatcher(root)
	require.NoError(t, err)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"server.log", false, true},
		{"src/weather/app.log", false, true},
		{"dist", true, true},
		{"notes.backup", false, true},
		{"fixtures", true, true},
		{".venv", true, true},
		{"src/weather/__pycache__", true, true},
		{"src/weather/mod.pyc", false, true},
		{".git", true, true},
		{"pyproject.toml", false, false},
		{"src/weather/__init__.py", false, false},
		{"src", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got bool
			if tt.isDir {
				got = m.IsIgnoredDir(tt.path)
			} else {
				got = m.IsIgnored(tt.path)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcherAbsolutePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")
	m, err := NewMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.IsIgnored(filepath.Join(root, "a.log")))
	assert.False(t, m.IsIgnored(filepath.Join(root, "a.py")))
	// paths outside the root are never ignored
	assert.False(t, m.IsIgnored(filepath.Join(filepath.Dir(root), "x.log")))
}

func TestWalkSkipsIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pyproject.toml"), "")
	writeFile(t, filepath.Join(root, "src", "app.py"), "")
	writeFile(t, filepath.Join(root, ".venv", "bin", "python"), "")
	writeFile(t, filepath.Join(root, "src", "app.pyc"), "")

	m, err := NewMatcher(root)
	require.NoError(t, err)

	var seen []string
	require.NoError(t, m.Walk(func(_, rel string, _ fs.DirEntry) error {
		seen = append(seen, filepath.ToSlash(rel))
		return nil
	}))
	assert.Equal(t, []string{".", "pyproject.toml", "src", "src/app.py"}, seen)
}

func TestSplitPath(t *testing.T) {
	assert.Empty(t, splitPath(""))
	assert.Empty(t, splitPath("."))
	assert.Equal(t, []string{"a", "b"}, splitPath("/a//b/"))
	assert.Equal(t, []string{"a", "b"}, splitPath("./a/./b"))
}

func TestReadIgnoreFileAllowlist(t *testing.T) {
	_, err := readIgnoreFile("/etc/passwd")
	assert.Error(t, err)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "pyproject.toml"), "[tool.poetry]\nname = \"weather\"\n")
	writeFile(t, filepath.Join(src, "poetry.lock"), "# lock\n")
	writeFile(t, filepath.Join(src, "src", "weather", "__init__.py"), "")
	writeFile(t, filepath.Join(src, ".venv", "bin", "python"), "")
	writeFile(t, filepath.Join(src, "src", "weather", "__pycache__", "x.pyc"), "")
	writeFile(t, filepath.Join(src, ".gitignore"), "*.log\n")
	writeFile(t, filepath.Join(src, "debug.log"), "noise")
	require.NoError(t, os.Chmod(filepath.Join(src, "poetry.lock"), 0o600))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst))

	for _, keep := range []string{"pyproject.toml", "poetry.lock", "src/weather/__init__.py", ".gitignore"} {
		_, err := os.Stat(filepath.Join(dst, keep))
		assert.NoError(t, err, "expected %s to be copied", keep)
	}
	for _, skip := range []string{".venv", "src/weather/__pycache__", "debug.log"} {
		_, err := os.Stat(filepath.Join(dst, skip))
		assert.True(t, os.IsNotExist(err), "expected %s to be skipped", skip)
	}

	info, err := os.Stat(filepath.Join(dst, "poetry.lock"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCopyTreeRefusesExistingDestination(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "pyproject.toml"), "")
	assert.Error(t, CopyTree(src, t.TempDir()))
}
