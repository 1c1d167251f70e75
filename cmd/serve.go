package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/babelfeed/internal/server"
)

var flagAddr string

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "127.0.0.1:8080", "listen address")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Preview the generated output over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		log.Info("preview server listening", "addr", flagAddr,
			"feeds_dir", cfg.Output.FeedsDir)
		return server.New(cfg.Output.FeedsDir, cfg.Output.OPMLPath).ListenAndServe(flagAddr)
	},
}
