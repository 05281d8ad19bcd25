// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vidgrab/internal/config"
	"vidgrab/internal/logx"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig  string
	flagStorage string
	flagDebug   bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vidgrab",
	Short: "Download short videos from TikTok, Instagram and Pinterest",
	Long: `Vidgrab resolves short-video post URLs to direct media URLs through a
chain of fallback strategies and downloads the result locally. It can run
one-shot from the terminal or as a long-running Telegram bot with an HTTP
sidecar API.`,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&flagStorage, "storage", "s", "", "Directory for downloaded files")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	// Secrets such as BOT_TOKEN come from the environment; a local
	// .env is honored when present.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagStorage != "" {
		cfg.StorageDir = flagStorage
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	dir, err := cfg.ExpandStorageDir()
	if err != nil {
		return fmt.Errorf("resolving storage dir: %w", err)
	}
	cfg.StorageDir = dir

	lc := logx.FromEnv("vidgrab")
	if cfg.Debug {
		lc.Level = "debug"
	}
	logx.Setup(lc)

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vidgrab %s\n", Version)
	},
}
