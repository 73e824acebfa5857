package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cameronmore/authd/server"
	"github.com/cameronmore/authd/storage"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := storage.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
			if err != nil {
				return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
			}
			defer store.Close()

			s, err := server.New(cfg, store, logger)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
}
