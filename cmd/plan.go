package cmd

import (
	"fmt"

	"github.com/fulmenhq/mcpenv/pkg/builder"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/overlay"
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <name>",
		Short: "Show the ordered layers a build of <name> would apply",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	cmd.Flags().String("layers", "", "Extra layer file applied after all other layers")
	cmd.Flags().Bool("prefer-wheels", true, "Prefer binary wheels over source distributions")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := builder.NewFromConfig(cfg, newExecutor())
	if err != nil {
		return withCode(exitcode.ConfigError, err)
	}

	preferWheels := cfg.PreferWheels
	if cmd.Flags().Changed("prefer-wheels") {
		preferWheels, _ = cmd.Flags().GetBool("prefer-wheels")
	}
	var extras []overlay.Layer
	if path, _ := cmd.Flags().GetString("layers"); path != "" {
		if extras, err = overlay.LoadFile(path); err != nil {
			return withCode(exitcode.ValidationError, err)
		}
	}

	plan, err := b.Plan(args[0], preferWheels, extras)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, l := range plan {
		if _, err := fmt.Fprintf(out, "%2d. %-24s %s\n", i, l.Name, l.Description); err != nil {
			return err
		}
	}
	return nil
}
