package cmd

import (
	"errors"
	"fmt"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/auth"
	"github.com/cameronmore/authd/server"
	"github.com/cameronmore/authd/storage"
	"github.com/spf13/cobra"
)

var errSeedInProduction = errors.New("seed is disabled when environment is production")

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var reg auth.Registration
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an account for development or testing",
		Long: `seed creates one account through the normal hashing path. It refuses to
run when the environment is production. The password is read from the
terminal when --password is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Production() {
				return errSeedInProduction
			}
			if reg.Password == "" {
				reg.Password, err = readPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
			}

			store, err := storage.Open(cmd.Context(), cfg.StoreDriver, cfg.StoreDSN)
			if err != nil {
				return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
			}
			defer store.Close()

			a, err := server.NewAuthenticator(cmd.Context(), cfg, store, logger)
			if err != nil {
				return err
			}
			p, err := a.CreateAccount(cmd.Context(), reg)
			if errors.Is(err, accounts.ErrDuplicateUsername) {
				return fmt.Errorf("username %q is taken", reg.Username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", p.Username, p.UserId)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&reg.Username, "username", "", "username of the new account")
	f.StringVar(&reg.Password, "password", "", "password of the new account")
	f.StringVar(&reg.Name, "name", "", "display name")
	f.StringVar(&reg.Bio, "bio", "", "profile bio")
	f.StringVar(&reg.Website, "website", "", "profile website")
	f.StringVar(&reg.ProfileImage, "profile-image", "", "profile image URL")
	cmd.MarkFlagRequired("username")
	return cmd
}
