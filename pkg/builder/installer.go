package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/tools"
)

// InstallPackage is one entry of the install closure.
type InstallPackage struct {
	overlay.Package
	// Marker is the PEP 508 environment marker gating the package, or "".
	Marker string
	// Spec is the requirements-file line the installer is given.
	Spec string
}

// InstallRequest describes one environment to materialize.
type InstallRequest struct {
	// Root is the environment directory to create.
	Root string
	// WorkDir is the project source tree.
	WorkDir       string
	PythonVersion string
	// Packages is the full closure, sorted by name. Dependencies are not
	// resolved again.
	Packages []InstallPackage
	// Env is passed to every installer invocation.
	Env map[string]string
}

// Installer materializes an environment from a resolved closure.
type Installer interface {
	Install(ctx context.Context, req InstallRequest) error
}

// UVInstaller creates a virtual environment with `uv venv` and installs
// the closure into it with `uv pip install --no-deps`.
type UVInstaller struct {
	Executor tools.ToolExecutor
	Tool     string
}

// NewUVInstaller returns an installer running tool ("uv" when empty).
func NewUVInstaller(executor tools.ToolExecutor, tool string) *UVInstaller {
	if tool == "" {
		tool = "uv"
	}
	return &UVInstaller{Executor: executor, Tool: tool}
}

// RequirementsFile is written into the environment for every install call.
const RequirementsFile = "requirements.txt"

// Install implements Installer.
func (u *UVInstaller) Install(ctx context.Context, req InstallRequest) error {
	// relocatable so the staged environment keeps working after the swap
	if err := u.run(ctx, req.WorkDir, req.Env, "venv", "--relocatable", "--python", req.PythonVersion, req.Root); err != nil {
		return err
	}
	python := filepath.Join(req.Root, "bin", "python")
	reqDir := filepath.Join(req.Root, metadataDir)
	if err := os.MkdirAll(reqDir, 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	if buildReqs := buildRequirements(req.Packages); len(buildReqs) > 0 {
		args := append([]string{"pip", "install", "--python", python}, buildReqs...)
		if err := u.run(ctx, req.WorkDir, req.Env, args...); err != nil {
			return err
		}
	}

	var shared []InstallPackage
	for _, p := range req.Packages {
		if len(p.Env) == 0 {
			shared = append(shared, p)
			continue
		}
		// package-level env cannot be scoped inside one uv call
		env := mergeEnv(req.Env, p.Env)
		file := filepath.Join(reqDir, "requirements-"+p.Name+".txt")
		if err := u.installFile(ctx, req.WorkDir, env, python, file, []InstallPackage{p}); err != nil {
			return err
		}
	}
	if len(shared) == 0 {
		return nil
	}
	return u.installFile(ctx, req.WorkDir, req.Env, python, filepath.Join(reqDir, RequirementsFile), shared)
}

func (u *UVInstaller) installFile(ctx context.Context, dir string, env map[string]string, python, file string, pkgs []InstallPackage) error {
	var b strings.Builder
	for _, p := range pkgs {
		b.WriteString(p.Spec)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(file, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrInstallFailed, file, err)
	}

	args := []string{"pip", "install", "--python", python, "--no-deps", "-r", file}
	for _, p := range pkgs {
		if p.Format == overlay.FormatSdist {
			args = append(args, "--no-binary", p.Name)
		}
		if len(p.BuildSystem) > 0 && p.Format != overlay.FormatWheel {
			args = append(args, "--no-build-isolation-package", p.Name)
		}
	}
	return u.run(ctx, dir, env, args...)
}

func (u *UVInstaller) run(ctx context.Context, dir string, env map[string]string, args ...string) error {
	logger.Debug("running installer", logger.String("tool", u.Tool), logger.Strings("args", args))
	res, err := u.Executor.Execute(ctx, tools.ExecuteOptions{
		Tool:    u.Tool,
		Args:    args,
		WorkDir: dir,
		Env:     env,
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInstallFailed, u.Tool, args[0], err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s %s (exit %d): %s", ErrInstallFailed, u.Tool, strings.Join(args[:min(2, len(args))], " "), res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// buildRequirements collects the build systems of packages built from
// source, keeping first-seen order.
func buildRequirements(pkgs []InstallPackage) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range pkgs {
		if p.Format == overlay.FormatWheel {
			continue
		}
		for _, r := range p.BuildSystem {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// sortedKeys returns m's keys in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
