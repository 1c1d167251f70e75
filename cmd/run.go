package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/babelfeed/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, translate and republish all subscribed feeds",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runPipeline())
	},
}

func runPipeline() int {
	cfg, log, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "babelfeed: %v\n", err)
		return ExitFatal
	}

	p, err := pipeline.Open(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return ExitFatal
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if err != nil {
		log.Error("run aborted", "error", err)
		return ExitFatal
	}
	switch {
	case summary.FailedFeeds() > 0:
		return ExitFeedFail
	case summary.Degraded():
		return ExitDegraded
	}
	return ExitOK
}
