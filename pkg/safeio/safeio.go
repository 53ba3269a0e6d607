package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a path escapes its containing directory.
var ErrOutsideBase = errors.New("path is outside base directory")

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, part := range strings.Split(filepath.ToSlash(c), "/") {
		if part == ".." {
			return "", errors.New("path traversal detected")
		}
	}
	return filepath.ToSlash(c), nil
}

// Contained reports whether target resolves to a location inside baseDir.
func Contained(baseDir, target string) (bool, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return false, fmt.Errorf("resolve base directory: %w", err)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false, fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

// ReadFileContained reads a file only if it is contained within baseDir.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	ok, err := Contained(baseDir, filePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOutsideBase
	}
	// #nosec G304 -- containment verified above
	return os.ReadFile(filePath)
}

// WriteFileAtomic writes data to a temp file in the destination directory and
// renames it over path, so readers never observe a half-written file. The
// existing mode is preserved; new files get perm.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	mode := perm
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode() & 0o777
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
