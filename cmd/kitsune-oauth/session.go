package main

import (
	"fmt"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the authorization URL to start a login",
		Long: `Print the authorization URL to start a login.

Open the URL in a browser and approve access. If "kitsune-oauth serve" is
running at the configured public URL, the callback completes the login.
Otherwise copy the code parameter from the redirect and run
"kitsune-oauth exchange <code>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			authURL, _, err := a.Exchanger.AuthorizationURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), authURL)
			return nil
		},
	}
}

func newExchangeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for a token pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			pair, err := a.Exchanger.ExchangeAuthorizationCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Token expires at %s\n", pair.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			token, err := a.Fetcher.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			if token == "" {
				return auth.ErrNotAuthenticated
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the token pair now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			pair, err := a.Fetcher.ForceRefresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed. Token expires at %s\n", pair.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	var forgetApp bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if err := a.Tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			if forgetApp {
				if err := a.Apps.Forget(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&forgetApp, "forget-app", false, "Also drop the registered client application")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the OAuth client application if it is not registered yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if force {
				if err := a.Apps.Forget(cmd.Context()); err != nil {
					return err
				}
			}
			app, err := a.Apps.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Client ID:    %s\nRedirect URI: %s\n", app.ID, app.RedirectURI)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Register a new application even if one is stored")
	return cmd
}
