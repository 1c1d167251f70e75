// Package cmd implements the babelfeed command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/babelfeed/internal/config"
	"github.com/bryan-buckman/babelfeed/internal/logger"
)

// Process exit statuses. Fatal errors (bad config, rejected credential)
// are distinct from feed failures and from partial degradation.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitFeedFail = 2
	ExitDegraded = 3
)

var (
	version = "dev"

	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "babelfeed",
	Short: "Translate RSS/Atom subscriptions into your language",
	Long: "babelfeed reads an OPML subscription file, fetches and extracts article text,\n" +
		"translates it through a configured provider, and republishes translated feeds\n" +
		"as static XML plus a rewritten OPML for your feed reader.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "babelfeed.yaml", "path to config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(opmlCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("babelfeed %s\n", version)
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitFatal)
	}
}

// setup loads .env, the config file and the logger. Called by
// subcommands before any network activity so config errors are fatal
// up front.
func setup() (*config.Config, *slog.Logger, error) {
	// Secrets come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
