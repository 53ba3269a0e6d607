// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFile is the per-project override file read after .gitignore.
const IgnoreFile = ".mcpenvignore"

// DefaultPatterns are never copied between project trees: VCS metadata,
// virtual environments, bytecode and tool caches, and previous build outputs.
var DefaultPatterns = []string{
	".git",
	".venv",
	"venv",
	"__pycache__",
	"*.pyc",
	".mypy_cache",
	".pytest_cache",
	".ruff_cache",
	".tox",
	"result",
}

// Matcher provides gitignore-based file filtering relative to a project root
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher creates a matcher with layered ignore files:
// 1. built-in defaults
// 2. .gitignore files (recursively) and .git/info/exclude
// 3. .mcpenvignore at the project root
func NewMatcher(root string) (*Matcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	var allPatterns []gitignore.Pattern
	for _, pattern := range DefaultPatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns with nil domain reads .gitignore files below the root
	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(absRoot), nil); err == nil {
		allPatterns = append(allPatterns, gitPatterns...)
	}

	if extra, err := readIgnoreFile(filepath.Join(absRoot, IgnoreFile)); err == nil {
		for _, pattern := range extra {
			allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
		}
	}

	return &Matcher{
		root:    absRoot,
		matcher: gitignore.NewMatcher(allPatterns),
	}, nil
}

// readIgnoreFile reads patterns from a text file (like .mcpenvignore)
func readIgnoreFile(path string) ([]string, error) {
	cleaned := filepath.Clean(path)
	if filepath.Base(cleaned) != IgnoreFile {
		return nil, fmt.Errorf("disallowed ignore file path: %s", cleaned)
	}
	content, err := os.ReadFile(cleaned) // #nosec G304 -- path cleaned and allowlisted
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns, nil
}

// Root returns the absolute root the matcher resolves paths against.
func (m *Matcher) Root() string { return m.root }

// IsIgnored checks if a file path should be ignored. Relative paths are
// taken relative to the matcher root.
func (m *Matcher) IsIgnored(path string) bool {
	return m.match(path, false)
}

// IsIgnoredDir checks if a directory should be ignored (and thus skipped during traversal)
func (m *Matcher) IsIgnoredDir(path string) bool {
	return m.match(path, true)
}

func (m *Matcher) match(path string, isDir bool) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(m.root, path)
		if err != nil {
			return false
		}
		rel = r
	}
	pathParts := splitPath(filepath.ToSlash(rel))
	if len(pathParts) == 0 || pathParts[0] == ".." {
		return false
	}
	return m.matcher.Match(pathParts, isDir)
}

// Walk calls fn for the root (rel ".") and every entry below it that is
// not ignored, in lexical order. Ignored directories are not descended.
func (m *Matcher) Walk(fn func(path, rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(m.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		if rel != "." {
			if d.IsDir() && m.IsIgnoredDir(rel) {
				return filepath.SkipDir
			}
			if !d.IsDir() && m.IsIgnored(rel) {
				return nil
			}
		}
		return fn(path, rel, d)
	})
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}

	return result
}
