/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/mcpenv/pkg/buildinfo"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/fulmenhq/mcpenv/pkg/tools"
	"github.com/spf13/cobra"
)

// newExecutor is swapped in tests so no real uv binary is needed.
var newExecutor = tools.NewExecutor

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcpenv",
		Short: "Migrate Python MCP servers to uv and build isolated environments for them",
		Long: `mcpenv converts Poetry-managed MCP server projects to PEP 621 + uv and
builds one isolated runtime environment per server from an ordered list of
package override layers.

Examples:
   mcpenv convert ./weather --out ./weather-uv   # Poetry -> PEP 621 + uv.lock
   mcpenv build weather ./weather-uv             # Build ./result/weather
   mcpenv build-all ./servers --format json      # Build every server, report
   mcpenv validate ./weather-uv                  # Check the project layout
   mcpenv plan weather                           # Show the layer order`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().String("config", "", "Config file (default: ./mcpenv.yaml, then $MCPENV_HOME/mcpenv.yaml)")
	cmd.PersistentFlags().String("output-root", "", "Directory holding built environments (overrides output_root)")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("mcpenv {{.Version}}\n")

	registerSubcommands(cmd)
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newBuildAllCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newPlanCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute runs the command tree and exits with the code mapped from the
// returned error. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		os.Exit(exitCodeFor(err))
	}
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	// only convert defines --dry-run; elsewhere this reads false
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "mcpenv",
		DryRun:    dryRun,
		Output:    cmd.ErrOrStderr(),
	}

	if err := logger.Initialize(config); err != nil {
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.ConfigError)
	}
}
