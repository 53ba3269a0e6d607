package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/validator"
	"github.com/spf13/cobra"
)

// errInvalidProject is returned when validation finds issues.
var errInvalidProject = errors.New("project failed validation")

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a project tree for a manifest, lock file and source code",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	res := validator.Validate(args[0])

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	case "text":
		if err := validator.WriteText(out, res); err != nil {
			return err
		}
	default:
		return withCode(exitcode.ConfigError, fmt.Errorf("unknown format %q", format))
	}

	if !res.IsValid() {
		return withCode(exitcode.ValidationError, errInvalidProject)
	}
	return nil
}
