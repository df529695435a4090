package app

import (
	"net/http"
	"strings"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
	"github.com/dvcrn/kitsune-oauth/internal/config"
	"github.com/dvcrn/kitsune-oauth/internal/credentials"
	"github.com/dvcrn/kitsune-oauth/internal/server"
	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/rs/zerolog"
)

// App holds the token lifecycle components built from one configuration.
// Every component shares the same storage and token repository.
type App struct {
	Config     config.Config
	Logger     zerolog.Logger
	Storage    storage.Storage
	HTTPClient *http.Client

	Apps      *credentials.Store
	Tokens    *tokens.Repository
	Exchanger *auth.Exchanger
	Fetcher   *auth.Fetcher
}

// New wires the components on top of store.
func New(cfg config.Config, store storage.Storage, logger zerolog.Logger) *App {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Storage:    store,
		HTTPClient: server.NewHTTPClient(),
	}

	registrar := credentials.NewGraphQLRegistrar(cfg.BackendURL, a.HTTPClient)
	a.Apps = credentials.NewStore(store, registrar, cfg.AppName, cfg.PublicURL, &a.Logger)
	a.Tokens = tokens.NewRepository(store, &a.Logger)
	a.Exchanger = auth.NewExchanger(auth.ExchangerConfig{
		BackendURL: cfg.BackendURL,
		ClientAuth: auth.ClientAuth(strings.ToLower(cfg.ClientAuth)),
		HTTPClient: a.HTTPClient,
		Logger:     &a.Logger,
	}, a.Apps, a.Tokens)
	a.Fetcher = auth.NewFetcher(a.Tokens, a.Exchanger, cfg.RefreshLeeway, &a.Logger)
	return a
}

// NewServer builds the local auth proxy.
func (a *App) NewServer() (*server.Server, error) {
	return server.New(a.Logger, server.Options{
		BackendURL:  a.Config.BackendURL,
		AdminAPIKey: a.Config.AdminAPIKey,
		Auth:        a.Exchanger,
		Tokens:      a.Fetcher,
		Session:     a.Tokens,
		Apps:        a.Apps,
	})
}

// NewScheduler returns the background refresher, or nil when disabled.
func (a *App) NewScheduler() *auth.Scheduler {
	if a.Config.RefreshLead <= 0 {
		return nil
	}
	return auth.NewScheduler(a.Tokens, a.Exchanger, a.Config.RefreshLead, &a.Logger)
}
