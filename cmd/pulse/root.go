package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/pulse/internal/app"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/logger"
)

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Headlines vs. searches: per-country news and trends essays",
		Long: `pulse compares what a country's news says with what its people search for.

Example usage:
  pulse fetch IL LB            # run one cycle for Israel and Lebanon
  pulse fetch --all            # run every configured country
  pulse serve                  # dashboard and archive server
  pulse archive list IL        # paired archive entries for Israel`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init()
			if debug {
				logger.InitWithWriter(cmd.ErrOrStderr(), true)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging (same as DEBUG=true)")

	root.AddCommand(newFetchCmd(), newServeCmd(), newCountriesCmd(), newArchiveCmd())
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// openRuntime loads configuration and connects the configured backends.
func openRuntime(ctx context.Context) (*app.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewRuntime(ctx, cfg)
}
