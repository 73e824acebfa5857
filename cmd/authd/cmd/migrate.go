package cmd

import (
	"fmt"

	"github.com/cameronmore/authd/storage"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations for SQL store drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			version, err := storage.Migrate(cmd.Context(), cfg.StoreDriver, cfg.StoreDSN)
			if err != nil {
				return err
			}
			logger.Info(cmd.Context(), "migrations applied", "driver", cfg.StoreDriver, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
