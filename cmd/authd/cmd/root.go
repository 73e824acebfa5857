package cmd

import (
	"os"

	"github.com/cameronmore/authd/config"
	"github.com/cameronmore/authd/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd builds the authd command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "authd",
		Short: "authd verifies credentials and issues sessions or tokens",
		Long: `authd registers accounts, verifies username/password logins against
salted scrypt hashes, and identifies later requests by a signed session
cookie or a bearer token, depending on the configured mode.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "path to a JSON config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (ignored when missing)")
	config.BindFlags(pf)

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newHashPasswordCmd(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// load resolves configuration for cmd and builds the logger it asks for.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(config.Sources{
		EnvFile:  o.envFile,
		JSONFile: o.configFile,
		Flags:    cmd.Flags(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
