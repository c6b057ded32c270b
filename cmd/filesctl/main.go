package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "filesctl",
		Short:        "Operator tasks for the job-board file store",
		SilenceUsage: true,
	}
	root.AddCommand(
		newSeedCmd(),
		newTokenCmd(),
		newPurgeOwnerCmd(),
		newSweepOrphansCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
