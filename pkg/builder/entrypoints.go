package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/mcpenv/internal/assets"
	"github.com/fulmenhq/mcpenv/pkg/buildinfo"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/safeio"
)

const debugTemplate = "debug-script.sh.hbs"

// CanonicalName returns "<prefix>-<name>", leaving names that already carry
// the prefix alone.
func CanonicalName(prefix, name string) string {
	if prefix == "" || name == prefix || strings.HasPrefix(name, prefix+"-") {
		return name
	}
	return prefix + "-" + name
}

// DebugScriptName is the introspection script written next to canonical.
func DebugScriptName(canonical string) string {
	return "debug-" + canonical
}

// linkCanonical makes bin/<canonical> exist when some entry point can stand
// in for it: bin/<name> first, then the first declared script by name. It
// returns the link target, or "" when canonical already existed or nothing
// could be linked.
func linkCanonical(binDir, name, canonical string, scripts []string) (string, error) {
	if exists(filepath.Join(binDir, canonical)) {
		return "", nil
	}

	candidates := []string{name}
	sorted := append([]string(nil), scripts...)
	sort.Strings(sorted)
	candidates = append(candidates, sorted...)

	for _, c := range candidates {
		if c == canonical || !exists(filepath.Join(binDir, c)) {
			continue
		}
		// relative, so the link survives the staging swap
		if err := os.Symlink(c, filepath.Join(binDir, canonical)); err != nil {
			return "", fmt.Errorf("link %s -> %s: %w", canonical, c, err)
		}
		return c, nil
	}

	logger.Warn("no entry point for canonical binary",
		logger.String("canonical", canonical),
		logger.Strings("scripts", sorted))
	return "", nil
}

func renderDebugScript(env *Environment) (string, error) {
	tpl, ok := assets.GetTemplate(debugTemplate)
	if !ok {
		return "", fmt.Errorf("embedded template %s missing", debugTemplate)
	}
	data := map[string]interface{}{
		"version":       buildinfo.Version(),
		"project":       env.Name,
		"canonical":     env.Canonical,
		"pythonVersion": env.PythonVersion,
		"fingerprint":   env.Fingerprint,
		"layers":        env.Plan.Names(),
		"binaries":      env.Binaries,
		"packages":      debugPackages(env.Packages),
	}
	t, err := raymond.Parse(string(tpl))
	if err != nil {
		return "", err
	}
	t.RegisterHelper("shq", shellQuote)
	return t.Exec(data)
}

// shellQuote renders s as one single-quoted shell word.
func shellQuote(s string) raymond.SafeString {
	return raymond.SafeString("'" + strings.ReplaceAll(s, "'", `'\''`) + "'")
}

func debugPackages(pkgs []InstallPackage) []map[string]string {
	out := make([]map[string]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, map[string]string{
			"name":    p.Name,
			"version": p.Version,
			"format":  string(p.Format),
		})
	}
	return out
}

func writeDebugScript(binDir string, env *Environment) error {
	script, err := renderDebugScript(env)
	if err != nil {
		return fmt.Errorf("render debug script: %w", err)
	}
	path := filepath.Join(binDir, DebugScriptName(env.Canonical))
	// #nosec G306 -- the script is meant to be executed
	return safeio.WriteFileAtomic(path, []byte(script), 0o755)
}

// listBinaries returns the sorted entry names of binDir.
func listBinaries(binDir string) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// exists follows symlinks, so a dangling link does not count.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
