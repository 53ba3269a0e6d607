package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/mcpenv/pkg/ignore"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/manifest"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
	"github.com/fulmenhq/mcpenv/pkg/tools"
)

// Migrator copies a legacy project, rewrites its manifest and regenerates
// the lock file with the target tool.
type Migrator struct {
	Executor tools.ToolExecutor
	// Tool is the lock tool, "uv" by default.
	Tool string
	// Timeout bounds the lock step; zero means no limit.
	Timeout time.Duration
	// Env is passed to the lock tool.
	Env map[string]string
}

// MigrationResult describes a completed migration.
type MigrationResult struct {
	Source         string
	Destination    string
	Manifest       *manifest.Target
	LockedPackages int
	Duration       time.Duration
}

// NewMigrator returns a migrator running tool through executor.
func NewMigrator(executor tools.ToolExecutor, tool string) *Migrator {
	if tool == "" {
		tool = "uv"
	}
	return &Migrator{Executor: executor, Tool: tool}
}

// Migrate converts the legacy project at src into a new tree at dst. The
// legacy lock file is removed only after the new lock has been verified; on
// any failure dst is removed and src is untouched.
func (m *Migrator) Migrate(ctx context.Context, src, dst string) (result *MigrationResult, err error) {
	start := time.Now()

	target, err := Convert(src)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Lstat(dst); statErr == nil {
		return nil, fmt.Errorf("destination already exists: %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return nil, fmt.Errorf("create destination parent: %w", err)
	}

	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dst); rmErr != nil {
				logger.Warn("failed to clean up migration destination", logger.String("path", dst), logger.Err(rmErr))
			}
		}
	}()

	if err := ignore.CopyTree(src, dst); err != nil {
		return nil, fmt.Errorf("copy %s: %w", src, err)
	}

	data, err := target.Encode()
	if err != nil {
		return nil, err
	}
	if err := safeio.WriteFileAtomic(filepath.Join(dst, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ManifestFile, err)
	}

	packages, err := m.lock(ctx, dst)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(filepath.Join(dst, LegacyLockFile)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove %s: %w", LegacyLockFile, err)
	}

	result = &MigrationResult{
		Source:         src,
		Destination:    dst,
		Manifest:       target,
		LockedPackages: packages,
		Duration:       time.Since(start),
	}
	logger.Info("migrated legacy project",
		logger.String("project", target.Project.Name),
		logger.String("destination", dst),
		logger.Int("locked_packages", packages),
		logger.Duration("took", result.Duration))
	return result, nil
}

// lock runs the lock tool in dir and verifies the lock file it leaves behind.
func (m *Migrator) lock(ctx context.Context, dir string) (int, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	res, err := m.Executor.Execute(ctx, tools.ExecuteOptions{
		Tool:    m.Tool,
		Args:    []string{"lock"},
		WorkDir: dir,
		Env:     m.Env,
	})
	if err != nil {
		return 0, &LockError{Tool: m.Tool, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return 0, &LockError{Tool: m.Tool, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(string(res.Stderr))}
	}

	lockPath := filepath.Join(dir, TargetLockFile)
	if !safeio.FileExists(lockPath) {
		return 0, &LockError{Tool: m.Tool, Err: ErrLockMissing}
	}
	doc, err := manifest.Load(lockPath)
	if err != nil {
		return 0, &LockError{Tool: m.Tool, Err: err}
	}
	v, _ := doc.Root.Get("package")
	pkgs, _ := v.([]manifest.Value)
	return len(pkgs), nil
}
