package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// StorageKey is the storage entry holding the registered client application
const StorageKey = "oauth_app"

// Store hands out the client application, registering one on first use.
type Store struct {
	store       storage.Storage
	registrar   Registrar
	appName     string
	redirectURI string
	logger      *zerolog.Logger

	group singleflight.Group
}

// NewStore creates a credential store. publicURL is the origin the client is
// served from; the callback path is appended to it.
func NewStore(store storage.Storage, registrar Registrar, appName, publicURL string, logger *zerolog.Logger) *Store {
	if appName == "" {
		appName = DefaultApplicationName
	}
	return &Store{
		store:       store,
		registrar:   registrar,
		appName:     appName,
		redirectURI: RedirectURI(publicURL),
		logger:      logger,
	}
}

// Load returns the cached application if it is present and well formed.
// Otherwise it registers a new one, persists it and returns it. Concurrent
// callers share a single registration, which keeps running when the caller
// that started it gives up.
func (s *Store) Load(ctx context.Context) (*ClientApplication, error) {
	if app, err := s.cached(ctx); err != nil || app != nil {
		return app, err
	}

	v, err, _ := s.group.Do(StorageKey, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		// Another caller may have finished registering while we waited.
		if app, err := s.cached(ctx); err != nil || app != nil {
			return app, err
		}
		return s.register(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClientApplication), nil
}

// Cached returns the stored application without registering. It returns nil
// when none is stored.
func (s *Store) Cached(ctx context.Context) (*ClientApplication, error) {
	return s.cached(ctx)
}

// Forget drops the stored application so the next Load registers again.
func (s *Store) Forget(ctx context.Context) error {
	if err := s.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to remove client application: %w", err)
	}
	return nil
}

func (s *Store) cached(ctx context.Context) (*ClientApplication, error) {
	b, err := s.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err == nil {
		var app *ClientApplication
		if app, err = decodeApplication(b); err == nil {
			return app, nil
		}
	}
	if !errors.Is(err, storage.ErrCorrupted) {
		return nil, fmt.Errorf("failed to load client application: %w", err)
	}

	if s.logger != nil {
		s.logger.Warn().Err(err).Msg("Stored OAuth application is invalid, registering a new one")
	}
	return nil, nil
}

func (s *Store) register(ctx context.Context) (*ClientApplication, error) {
	if s.logger != nil {
		s.logger.Info().
			Str("name", s.appName).
			Str("redirect_uri", s.redirectURI).
			Msg("Registering OAuth application")
	}

	app, err := s.registrar.Register(ctx, s.appName, s.redirectURI)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("Failed to register OAuth application")
		}
		var regErr *RegistrationError
		if errors.As(err, &regErr) {
			return nil, err
		}
		return nil, &RegistrationError{Reason: "registrar failed", Err: err}
	}
	if app == nil {
		return nil, &RegistrationError{Reason: "empty response from server"}
	}

	b, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client application: %w", err)
	}
	if err := s.store.Set(ctx, StorageKey, b); err != nil {
		return nil, fmt.Errorf("failed to persist client application: %w", err)
	}

	if s.logger != nil {
		s.logger.Info().Str("client_id", app.ID).Msg("OAuth application registered")
	}
	return app, nil
}
