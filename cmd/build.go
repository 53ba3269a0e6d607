package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/mcpenv/pkg/builder"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/fulmenhq/mcpenv/pkg/report"
	"github.com/fulmenhq/mcpenv/pkg/validator"
	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <name> <src>",
		Short: "Build an isolated environment for one project",
		Long: `Build resolves the project's uv.lock, applies the layer plan
(common layers, source preference, the layer registered for <name>, then
--layers) and installs the result into <output_root>/<name>.

An identical rebuild (same source, python, preference and layers) reuses the
existing environment unless --rebuild is given.`,
		Args: cobra.ExactArgs(2),
		RunE: runBuild,
	}
	cmd.Flags().String("python", "", "Python version (overrides python_version)")
	cmd.Flags().Bool("prefer-wheels", true, "Prefer binary wheels over source distributions")
	cmd.Flags().String("layers", "", "Extra layer file applied after all other layers")
	cmd.Flags().String("meta", "", "Server metadata file (meta.yaml)")
	cmd.Flags().Bool("rebuild", false, "Rebuild even when an identical environment exists")
	cmd.Flags().Duration("timeout", 0, "Limit for the install step (overrides build_timeout)")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	name, src := args[0], args[1]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := builder.NewFromConfig(cfg, newExecutor())
	if err != nil {
		return withCode(exitcode.ConfigError, err)
	}

	req := builder.Request{ProjectName: name, SourceTree: src}
	if path, _ := cmd.Flags().GetString("meta"); path != "" {
		meta, err := builder.LoadMeta(path)
		if err != nil {
			return withCode(exitcode.ValidationError, err)
		}
		req.Meta = meta
		req.PythonVersion = meta.PythonVersion
		req.PreferWheels = meta.PreferWheels
		req.MCPConfig = meta.MCP
	}
	if cmd.Flags().Changed("python") {
		req.PythonVersion, _ = cmd.Flags().GetString("python")
	}
	if cmd.Flags().Changed("prefer-wheels") {
		prefer, _ := cmd.Flags().GetBool("prefer-wheels")
		req.PreferWheels = &prefer
	}
	if path, _ := cmd.Flags().GetString("layers"); path != "" {
		layers, err := overlay.LoadFile(path)
		if err != nil {
			return withCode(exitcode.ValidationError, err)
		}
		req.ExtraLayers = layers
	}
	req.Rebuild, _ = cmd.Flags().GetBool("rebuild")

	env, err := b.Build(cmd.Context(), req)
	if err != nil {
		return err
	}

	if res := validator.ValidateEnvironment(env); !res.IsValid() {
		for i, issue := range res.Issues {
			logger.Warn("environment check failed", logger.String("check", issue), logger.String("suggestion", res.Suggestions[i]))
		}
	}

	out := cmd.OutOrStdout()
	_, err = fmt.Fprintf(out, "built %s -> %s\ncanonical: %s\nlayers:    %s\nbinaries:  %s\n",
		env.Name, env.Root, env.Canonical, strings.Join(env.Plan.Names(), ", "), strings.Join(env.Binaries, ", "))
	return err
}

func newBuildAllCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-all <serversRoot>",
		Short: "Build every server directory under a root and report",
		Long: `Build-all builds each immediate subdirectory of <serversRoot> that holds a
pyproject.toml, skipping names matching batch.exclude. Per-server files are
optional: overrides.yaml (layers), meta.yaml (metadata) and build.env
(installer environment). Poetry projects are converted into the scratch
directory first. One failure never stops the other builds.`,
		Args: cobra.ExactArgs(1),
		RunE: runBuildAll,
	}
	cmd.Flags().String("format", "text", "Report format (text|json)")
	cmd.Flags().Int("workers", 0, "Parallel builds (overrides workers; 0 = CPUs)")
	cmd.Flags().Duration("timeout", 0, "Limit for each install step (overrides build_timeout)")
	return cmd
}

func runBuildAll(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return withCode(exitcode.ConfigError, fmt.Errorf("unknown format %q", format))
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := builder.NewFromConfig(cfg, newExecutor())
	if err != nil {
		return withCode(exitcode.ConfigError, err)
	}

	results, err := b.BuildAll(cmd.Context(), args[0])
	if err != nil {
		return withCode(exitcode.FileSystemError, err)
	}
	summary, err := report.Report(results)
	if err != nil {
		return withCode(exitcode.BatchFailure, err)
	}

	if format == "json" {
		err = report.WriteJSON(cmd.OutOrStdout(), summary)
	} else {
		err = report.WriteText(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return withCode(exitcode.BatchFailure, fmt.Errorf("%d of %d builds failed", summary.Failed, summary.Total))
	}
	return nil
}
