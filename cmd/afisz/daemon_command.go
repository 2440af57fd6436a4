package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"afisz/internal/daemon"
	appLog "afisz/internal/log"
	"afisz/internal/pipeline"
)

func newDaemonCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run on the configured schedule and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				appLog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			}()

			runner := func(ctx context.Context) (*pipeline.Report, error) {
				return executeRun(ctx, cfg, false)
			}
			return daemon.Run(ctx, cfg, runner)
		},
	}
}
