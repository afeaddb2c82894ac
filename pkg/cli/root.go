package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/browserflow/browserflow/pkg/driver/rodriver"
)

const (
	// Version is the current version of BrowserFlow
	Version = "1.0.0"
)

// Config holds the global configuration for the BrowserFlow CLI.
type Config struct {
	ConfigDir string
	Debug     bool

	// Browser holds the driver settings loaded from config.yaml, with
	// command-line flags layered on top.
	Browser rodriver.Config
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for BrowserFlow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browserflow",
		Short: "BrowserFlow - Record and replay browser scenarios",
		Long: `BrowserFlow records browser interactions as named scenarios and replays
them later with variable substitution. Scenarios are captured over a live
browser session, stored as JSON documents, and replayed step by step
against a fresh or existing session.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.browserflow)")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewScenariosCommand())
	cmd.AddCommand(NewReplayCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewExportCommand())
	cmd.AddCommand(NewImportCommand())

	return cmd
}

// configFile is the on-disk shape of config.yaml.
type configFile struct {
	Version string          `yaml:"version"`
	Browser rodriver.Config `yaml:"browser"`
}

// initConfig initializes the BrowserFlow configuration directory and files
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv("BROWSERFLOW_CONFIG_DIR"); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".browserflow")
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	for _, dir := range []string{"scenarios", "screenshots"} {
		dirPath := filepath.Join(GlobalConfig.ConfigDir, dir)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(GlobalConfig.ConfigDir, "config.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		defaults := configFile{Version: "1.0", Browser: rodriver.DefaultConfig()}
		data, err := yaml.Marshal(&defaults)
		if err != nil {
			return fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		GlobalConfig.Browser = defaults.Browser
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg := configFile{Browser: rodriver.DefaultConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	GlobalConfig.Browser = cfg.Browser

	return nil
}

// screenshotsDir is where replay screenshots land.
func screenshotsDir() string {
	return filepath.Join(GlobalConfig.ConfigDir, "screenshots")
}

// historyDBPath is the replay history database location.
func historyDBPath() string {
	return filepath.Join(GlobalConfig.ConfigDir, "browserflow.db")
}
