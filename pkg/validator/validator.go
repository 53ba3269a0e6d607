// Package validator checks project trees and built environments for the
// files a build needs and suggests fixes for what is missing.
package validator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fulmenhq/mcpenv/pkg/builder"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
)

// Check names, in the order they run.
const (
	CheckManifest        = "hasManifest"
	CheckLockFile        = "hasLockFile"
	CheckSourceCode      = "hasSourceCode"
	CheckCanonicalBinary = "hasCanonicalBinary"
	CheckDebugScript     = "hasDebugScript"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Result is an ordered set of checks plus the issues and suggestions
// derived from the failed ones.
type Result struct {
	Path        string
	Checks      []CheckResult
	Issues      []string
	Suggestions []string
}

// IsValid reports whether every check passed.
func (r *Result) IsValid() bool {
	return len(r.Issues) == 0
}

func (r *Result) add(name string, passed bool) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Passed: passed})
	if !passed {
		r.Issues = append(r.Issues, name)
		r.Suggestions = append(r.Suggestions, Suggestion(name))
	}
}

// MarshalJSON renders {"isValid", "issues", "suggestions"}.
func (r *Result) MarshalJSON() ([]byte, error) {
	issues := r.Issues
	if issues == nil {
		issues = []string{}
	}
	suggestions := r.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return json.Marshal(struct {
		IsValid     bool     `json:"isValid"`
		Issues      []string `json:"issues"`
		Suggestions []string `json:"suggestions"`
	}{r.IsValid(), issues, suggestions})
}

// Validate checks a project tree.
func Validate(path string) *Result {
	r := &Result{Path: path}
	r.add(CheckManifest, safeio.FileExists(filepath.Join(path, "pyproject.toml")))
	r.add(CheckLockFile, safeio.FileExists(filepath.Join(path, "uv.lock")) || safeio.FileExists(filepath.Join(path, "poetry.lock")))
	r.add(CheckSourceCode, safeio.DirExists(filepath.Join(path, "src")) || safeio.FileExists(filepath.Join(path, "__init__.py")))
	return r
}

// ValidateEnvironment checks the environment's source tree and its
// entry points.
func ValidateEnvironment(env *builder.Environment) *Result {
	r := Validate(env.Workspace.Root)
	r.Path = env.Root

	bin := filepath.Join(env.Root, "bin")
	r.add(CheckCanonicalBinary, isExecutable(filepath.Join(bin, env.Canonical)))
	r.add(CheckDebugScript, isExecutable(filepath.Join(bin, builder.DebugScriptName(env.Canonical))))
	return r
}

func isExecutable(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Mode()&0o111 != 0
}

// Suggestion returns the fix for a failed check.
func Suggestion(check string) string {
	switch check {
	case CheckManifest:
		return "Add a pyproject.toml; run `mcpenv convert` if the project still uses Poetry metadata elsewhere"
	case CheckLockFile:
		return "Generate a lock file with `uv lock` (or `mcpenv convert` for Poetry projects)"
	case CheckSourceCode:
		return "Put the package under src/ or add an __init__.py at the project root"
	case CheckCanonicalBinary:
		return "Declare a [project.scripts] entry point so the canonical binary can be linked, then rebuild"
	case CheckDebugScript:
		return "Rebuild the environment with `mcpenv build --rebuild` to regenerate the debug script"
	default:
		logger.Error("no suggestion for validation check", logger.String("check", check))
		return "Check the project layout: " + check + " failed"
	}
}

// WriteText prints one line per check followed by the suggestions.
func WriteText(w io.Writer, r *Result) error {
	if _, err := fmt.Fprintf(w, "%s\n", r.Path); err != nil {
		return err
	}
	for _, c := range r.Checks {
		mark := "ok  "
		if !c.Passed {
			mark = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "  [%s] %s\n", mark, c.Name); err != nil {
			return err
		}
	}
	if r.IsValid() {
		_, err := fmt.Fprintln(w, "valid")
		return err
	}
	if _, err := fmt.Fprintln(w, "suggestions:"); err != nil {
		return err
	}
	for _, s := range r.Suggestions {
		if _, err := fmt.Fprintf(w, "  - %s\n", s); err != nil {
			return err
		}
	}
	return nil
}
