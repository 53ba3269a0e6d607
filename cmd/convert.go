package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/mcpenv/pkg/convert"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/spf13/cobra"
)

func newConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <src>",
		Short: "Convert a Poetry project to PEP 621 + uv",
		Long: `Convert copies a Poetry-managed project to a new directory, rewrites its
pyproject.toml in PEP 621 form and regenerates the lock with uv. The source
tree is never modified. poetry.lock is dropped from the copy only after
uv.lock has been written and verified.

With --dry-run the converted pyproject.toml is printed and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}
	cmd.Flags().String("out", "", "Destination directory (default: <src>-uv next to the source)")
	cmd.Flags().Bool("dry-run", false, "Print the converted manifest without writing anything")
	cmd.Flags().Duration("timeout", 0, "Limit for the lock step (overrides build_timeout)")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	src := filepath.Clean(args[0])
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out, _ := cmd.Flags().GetString("out")

	if dryRun {
		target, err := convert.Convert(src)
		if err != nil {
			return err
		}
		data, err := target.Encode()
		if err != nil {
			return withCode(exitcode.ConversionError, err)
		}
		logger.Info("converted manifest (not written)", logger.String("source", src))
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if out == "" {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		out = abs + "-uv"
	}

	m := convert.NewMigrator(newExecutor(), cfg.Installer.Tool)
	m.Timeout = cfg.BuildTimeout
	res, err := m.Migrate(cmd.Context(), src, out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "converted %s -> %s (%d locked packages)\n", res.Source, res.Destination, res.LockedPackages)
	return err
}
