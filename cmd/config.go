package cmd

import (
	"github.com/fulmenhq/mcpenv/pkg/config"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configFlags maps command flags onto configuration keys; a flag takes
// precedence only when it was set on the command line.
var configFlags = map[string]string{
	"output-root": "output_root",
	"workers":     "workers",
	"timeout":     "build_timeout",
}

// loadConfig resolves configuration for cmd from defaults, the config file,
// MCPENV_* variables and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(configFile)
	if err != nil {
		return nil, withCode(exitcode.ConfigError, err)
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, withCode(exitcode.ConfigError, err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, withCode(exitcode.ConfigError, err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", logger.String("file", used))
	}
	return cfg, nil
}

// bindFlags binds the configFlags present in flags onto v.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range configFlags {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
