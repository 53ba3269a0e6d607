/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/mcpenv/pkg/logger"
)

// LocalExecutor runs tools installed on the local system
type LocalExecutor struct {
	shimDirs []string
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{
		shimDirs: getShimDirectories(),
	}
}

// Name returns the executor name
func (e *LocalExecutor) Name() string {
	return "local"
}

// IsAvailable checks if the tool is available locally
func (e *LocalExecutor) IsAvailable(tool string) bool {
	return e.FindToolPath(tool) != ""
}

// Execute runs the tool locally
func (e *LocalExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	toolPath := e.FindToolPath(opts.Tool)
	if toolPath == "" {
		return nil, fmt.Errorf("%w: %s not found in PATH or shim directories", ErrToolNotFound, opts.Tool)
	}

	// #nosec G204 - toolPath is validated via FindToolPath
	cmd := exec.CommandContext(ctx, toolPath, opts.Args...)

	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	cmd.Env = mergeEnv(os.Environ(), opts.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("executing tool", logger.String("tool", opts.Tool), logger.Strings("args", opts.Args), logger.String("dir", opts.WorkDir))
	err := cmd.Run()

	result := &ExecuteResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Executor: "local",
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s interrupted: %w", opts.Tool, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			// The caller checks ExitCode to determine success/failure
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", opts.Tool, err)
	}

	return result, nil
}

// FindToolPath finds a tool by name, checking PATH first then known shim directories.
// uv's standalone installer drops the binary in ~/.local/bin or ~/.cargo/bin, which
// are often missing from PATH in CI and desktop-launched shells.
func (e *LocalExecutor) FindToolPath(toolName string) string {
	if path, err := exec.LookPath(toolName); err == nil {
		return path
	}

	for _, shimDir := range e.shimDirs {
		if shimDir == "" {
			continue
		}
		candidate := filepath.Join(shimDir, toolName)
		if runtime.GOOS == "windows" && !strings.HasSuffix(candidate, ".exe") {
			candidate += ".exe"
		}
		if _, err := os.Stat(candidate); err == nil {
			logger.Debug(fmt.Sprintf("found %s in shim dir: %s", toolName, candidate))
			return candidate
		}
	}

	return ""
}

// mergeEnv overlays extra onto base. Later keys win; output order is stable.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// getShimDirectories returns install locations used by uv and common Python tool managers
func getShimDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	candidates := []string{
		os.Getenv("UV_INSTALL_DIR"),
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, ".cargo", "bin"),
		filepath.Join(homeDir, ".local", "share", "mise", "shims"),
	}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, filepath.Join(homeDir, "scoop", "shims"))
	}

	dirs := []string{}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
