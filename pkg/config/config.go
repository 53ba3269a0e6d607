package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for mcpenv
type Config struct {
	PythonVersion string          `mapstructure:"python_version"`
	BinaryPrefix  string          `mapstructure:"binary_prefix"`
	OutputRoot    string          `mapstructure:"output_root"`
	Workers       int             `mapstructure:"workers"`
	BuildTimeout  time.Duration   `mapstructure:"build_timeout"`
	PreferWheels  bool            `mapstructure:"prefer_wheels"`
	Installer     InstallerConfig `mapstructure:"installer"`
	Layers        LayersConfig    `mapstructure:"layers"`
	Batch         BatchConfig     `mapstructure:"batch"`
}

// InstallerConfig selects the external tool used to lock and install environments
type InstallerConfig struct {
	Tool string `mapstructure:"tool"`
}

// LayersConfig controls which overlay layers are applied
type LayersConfig struct {
	// Common layers are applied to every build, before project layers.
	Common []string `mapstructure:"common"`
	// Projects maps a project name to the single layer registered for it.
	Projects map[string]string `mapstructure:"projects"`
	// Files are overlay layer files loaded into the catalog at startup.
	Files []string `mapstructure:"files"`
}

// BatchConfig holds build-all options
type BatchConfig struct {
	Exclude []string `mapstructure:"exclude"`
}

var defaultConfig = Config{
	PythonVersion: "3.12",
	BinaryPrefix:  "mcp",
	OutputRoot:    "./result",
	Workers:       0,
	BuildTimeout:  parseDurationDefault("10m"),
	PreferWheels:  true,
	Installer:     InstallerConfig{Tool: "uv"},
	Layers: LayersConfig{
		Common:   []string{"default-build-system", "editable-project"},
		Projects: map[string]string{},
		Files:    []string{},
	},
	Batch: BatchConfig{Exclude: []string{".*", "_*"}},
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	c := defaultConfig
	c.Layers.Common = append([]string(nil), defaultConfig.Layers.Common...)
	c.Layers.Projects = map[string]string{}
	c.Layers.Files = []string{}
	c.Batch.Exclude = append([]string(nil), defaultConfig.Batch.Exclude...)
	return &c
}

// NewViper returns a viper instance with defaults, search paths and
// environment binding applied. When configFile is non-empty it is the only
// file consulted and must exist.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("python_version", defaultConfig.PythonVersion)
	v.SetDefault("binary_prefix", defaultConfig.BinaryPrefix)
	v.SetDefault("output_root", defaultConfig.OutputRoot)
	v.SetDefault("workers", defaultConfig.Workers)
	v.SetDefault("build_timeout", defaultConfig.BuildTimeout)
	v.SetDefault("prefer_wheels", defaultConfig.PreferWheels)
	v.SetDefault("installer.tool", defaultConfig.Installer.Tool)
	v.SetDefault("layers.common", defaultConfig.Layers.Common)
	v.SetDefault("layers.projects", map[string]string{})
	v.SetDefault("layers.files", []string{})
	v.SetDefault("batch.exclude", defaultConfig.Batch.Exclude)

	v.SetEnvPrefix("MCPENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("mcpenv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := GetMcpenvHome(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.Layers.Projects == nil {
		config.Layers.Projects = map[string]string{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig loads configuration from defaults, the optional config file and
// MCPENV_* environment variables.
func LoadConfig(configFile string) (*Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate rejects settings no build could run with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.PythonVersion) == "" {
		problems = append(problems, "python_version must not be empty")
	}
	if strings.TrimSpace(c.BinaryPrefix) == "" {
		problems = append(problems, "binary_prefix must not be empty")
	}
	if strings.ContainsAny(c.BinaryPrefix, `/\ `) {
		problems = append(problems, "binary_prefix must not contain path separators or spaces")
	}
	if c.OutputRoot == "" {
		problems = append(problems, "output_root must not be empty")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must be >= 0")
	}
	if c.BuildTimeout <= 0 {
		problems = append(problems, "build_timeout must be positive")
	}
	if c.Installer.Tool == "" {
		problems = append(problems, "installer.tool must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EffectiveWorkers resolves workers=0 to the number of CPUs.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// parseDurationDefault is a helper to create default duration values from string literal
func parseDurationDefault(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// GetMcpenvHome returns the mcpenv home directory
func GetMcpenvHome() (string, error) {
	if home := os.Getenv("MCPENV_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}

	return filepath.Join(homeDir, ".mcpenv"), nil
}

// EnsureMcpenvHome creates the mcpenv home directory if it doesn't exist
func EnsureMcpenvHome() (string, error) {
	homeDir, err := GetMcpenvHome()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(homeDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create mcpenv home directory: %v", err)
	}

	return homeDir, nil
}

// GetScratchDir returns the directory legacy projects are migrated into
// before a batch build.
func GetScratchDir() (string, error) {
	homeDir, err := EnsureMcpenvHome()
	if err != nil {
		return "", err
	}

	scratchDir := filepath.Join(homeDir, "scratch")
	if err := os.MkdirAll(scratchDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %v", err)
	}

	return scratchDir, nil
}
