package main

import (
	"github.com/spf13/cobra"

	"github.com/deusflow/pulse/internal/logger"
	"github.com/deusflow/pulse/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard, JSON API and archive files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr == "" {
				addr = rt.Config.ListenAddr
			}
			opts := server.Options{
				Catalog:        rt.Catalog,
				Countries:      rt.Countries,
				Metrics:        rt.Metrics,
				Gatherer:       rt.Registry,
				Limiter:        rt.Limiter,
				AllowedOrigins: rt.Config.AllowedOrigins,
				Logger:         logger.Logger,
			}
			if cs, ok := rt.Cache.(server.CacheStats); ok {
				opts.Cache = cs
			}
			if rt.Config.ArchiveBackend == "gcs" {
				opts.Signer = rt.GCS
			}
			if !readOnly && rt.Config.ArchiveBackend != "drive" {
				opts.Runner = rt.Pipeline
			}

			srv, err := server.New(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR or :8000)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable POST /api/fetch")
	return cmd
}
