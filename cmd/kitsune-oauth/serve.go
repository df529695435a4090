package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/app"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local auth proxy",
		Long: `Run the local auth proxy.

Visit /login to authenticate. Requests to /graphql and /api/... are forwarded
to the backend with the current access token, refreshing it when needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	log := a.Logger
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := a.NewServer()
	if err != nil {
		return err
	}

	if err := a.Tokens.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not watch storage for external session changes")
	}
	if scheduler := a.NewScheduler(); scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("⚠️  Background refresh disabled")
		}
		defer scheduler.Close()
	}

	validateSessionAtStartup(ctx, a)

	httpServer := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", a.Config.Port).
			Str("backend", a.Config.BackendURL).
			Str("login", a.Config.PublicURL+"/login").
			Msg("Starting server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func validateSessionAtStartup(ctx context.Context, a *app.App) {
	log := a.Logger

	pair, err := a.Tokens.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("⚠️  Failed to read stored session at startup")
		return
	}
	if pair == nil {
		log.Warn().Str("login", a.Config.PublicURL+"/login").Msg("⚠️  Not logged in, visit the login URL to authenticate")
		return
	}

	minutesUntilExpiry := int64(time.Until(pair.ExpiresAt).Minutes())
	switch {
	case minutesUntilExpiry <= 0:
		log.Warn().
			Int64("minutes_expired", -minutesUntilExpiry).
			Msg("⚠️  Token is already expired, will attempt refresh on first request")
	case minutesUntilExpiry <= 60:
		log.Warn().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("⚠️  Token expires soon, will refresh shortly")
	default:
		log.Info().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("✅ Token is valid and not expiring soon")
	}
}
