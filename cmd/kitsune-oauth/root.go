package main

import (
	"github.com/dvcrn/kitsune-oauth/internal/app"
	"github.com/dvcrn/kitsune-oauth/internal/config"
	"github.com/dvcrn/kitsune-oauth/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kitsune-oauth",
		Short: "Keep a Kitsune OAuth session alive and proxy API calls with it",
		Long: `kitsune-oauth registers an OAuth client application with a Kitsune backend,
walks you through the authorization-code login, keeps the resulting token pair
fresh and forwards /graphql and /api requests with the bearer token attached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default $XDG_CONFIG_HOME/kitsune-oauth/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newExchangeCmd(opts),
		newTokenCmd(opts),
		newRefreshCmd(opts),
		newLogoutCmd(opts),
		newRegisterCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

// setup loads configuration and wires the application for one command.
func (o *rootOptions) setup(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	store, err := app.OpenStorage(cmd.Context(), cfg.Storage, &log)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, store, log), nil
}
