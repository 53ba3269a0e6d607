/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/mcpenv/pkg/buildinfo"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show mcpenv version",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show Go version and platform")
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	version := buildinfo.Version()
	if format == "json" {
		versionInfo := map[string]interface{}{
			"version":       version,
			"binaryVersion": buildinfo.BinaryVersion,
			"moduleVersion": buildinfo.ModuleVersion(),
			"goVersion":     runtime.Version(),
			"platform":      runtime.GOOS,
			"arch":          runtime.GOARCH,
		}
		jsonData, err := json.MarshalIndent(versionInfo, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %v", err)
		}
		_, err = fmt.Fprintln(out, string(jsonData))
		return err
	}

	if _, err := fmt.Fprintf(out, "mcpenv %s\n", version); err != nil {
		return err
	}
	if extended {
		_, err := fmt.Fprintf(out, "go:       %s\nplatform: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	}
	return nil
}
