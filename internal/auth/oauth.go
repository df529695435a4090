package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/credentials"
	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// TokenPath is the backend's token endpoint
	TokenPath = "/oauth/token"
	// AuthorizePath is the backend's authorization endpoint
	AuthorizePath = "/oauth/authorize"

	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// DefaultScopes are requested on every authorization
var DefaultScopes = []string{"read", "write"}

// ApplicationSource yields the client application used to authenticate
// against the token endpoint. *credentials.Store implements it.
type ApplicationSource interface {
	Load(ctx context.Context) (*credentials.ClientApplication, error)
}

// ClientAuth selects how client credentials reach the token endpoint
type ClientAuth string

const (
	// ClientAuthHeader sends HTTP Basic credentials
	ClientAuthHeader ClientAuth = "header"
	// ClientAuthParams sends client_id and client_secret as form fields
	ClientAuthParams ClientAuth = "params"
)

func (c ClientAuth) style() oauth2.AuthStyle {
	if c == ClientAuthParams {
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleInHeader
}

type ExchangerConfig struct {
	// BackendURL is the origin serving /oauth/token and /oauth/authorize
	BackendURL string
	ClientAuth ClientAuth
	Scopes     []string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	// Now is used to stamp issue times. Defaults to time.Now.
	Now func() time.Time
}

// Exchanger performs the authorization-code and refresh-token grants and
// persists the resulting pair. Storage is only written after a fully
// validated response.
type Exchanger struct {
	backendURL string
	clientAuth ClientAuth
	scopes     []string
	httpClient *http.Client
	logger     *zerolog.Logger
	now        func() time.Time

	apps   ApplicationSource
	tokens *tokens.Repository

	refreshGroup singleflight.Group
}

func NewExchanger(cfg ExchangerConfig, apps ApplicationSource, repo *tokens.Repository) *Exchanger {
	e := &Exchanger{
		backendURL: strings.TrimRight(cfg.BackendURL, "/"),
		clientAuth: cfg.ClientAuth,
		scopes:     cfg.Scopes,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		now:        cfg.Now,
		apps:       apps,
		tokens:     repo,
	}
	if e.scopes == nil {
		e.scopes = DefaultScopes
	}
	if e.httpClient == nil {
		e.httpClient = http.DefaultClient
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Exchanger) config(app *credentials.ClientApplication) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ID,
		ClientSecret: app.Secret,
		RedirectURL:  app.RedirectURI,
		Scopes:       e.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.backendURL + AuthorizePath,
			TokenURL:  e.backendURL + TokenPath,
			AuthStyle: e.clientAuth.style(),
		},
	}
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// AuthorizationURL returns the URL the user visits to grant access, and the
// state value the callback must echo back.
func (e *Exchanger) AuthorizationURL(ctx context.Context) (authURL, state string, err error) {
	app, err := e.apps.Load(ctx)
	if err != nil {
		return "", "", err
	}
	state = uuid.NewString()
	return e.config(app).AuthCodeURL(state), state, nil
}

// ExchangeAuthorizationCode trades a one-time code for a token pair and
// stores it.
func (e *Exchanger) ExchangeAuthorizationCode(ctx context.Context, code string) (*tokens.TokenPair, error) {
	if code == "" {
		return nil, &AuthFlowError{Grant: grantAuthorizationCode, Err: errors.New("authorization code is empty")}
	}

	app, err := e.apps.Load(ctx)
	if err != nil {
		return nil, err
	}

	issuedAt := e.now()
	tok, err := e.config(app).Exchange(e.clientContext(ctx), code)
	if err != nil {
		return nil, e.flowError(grantAuthorizationCode, err)
	}

	pair, err := pairFromToken(grantAuthorizationCode, tok, issuedAt)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Save(ctx, pair); err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info().
			Time("expires_at", pair.ExpiresAt).
			Msg("✅ Authorization code exchanged for token pair")
	}
	return pair, nil
}

// Refresh trades pair's refresh token for a new pair and stores it.
// Concurrent calls share one request to the backend, and the shared request
// is not cancelled when an individual caller gives up. If the repository
// already holds a newer unexpired pair, that pair is returned instead.
func (e *Exchanger) Refresh(ctx context.Context, pair *tokens.TokenPair) (*tokens.TokenPair, error) {
	if pair == nil || pair.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	v, err, shared := e.refreshGroup.Do(grantRefreshToken, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)

		current, err := e.tokens.Load(ctx)
		if err == nil && current != nil &&
			current.RefreshToken != pair.RefreshToken &&
			!current.Expired(e.now(), 0) {
			return current, nil
		}
		return e.refresh(ctx, pair)
	})
	if err != nil {
		return nil, err
	}
	if shared && e.logger != nil {
		e.logger.Debug().Msg("Joined in-flight token refresh")
	}
	return v.(*tokens.TokenPair), nil
}

func (e *Exchanger) refresh(ctx context.Context, pair *tokens.TokenPair) (*tokens.TokenPair, error) {
	app, err := e.apps.Load(ctx)
	if err != nil {
		return nil, err
	}

	if e.logger != nil {
		minutesUntilExpiry := int64(pair.ExpiresAt.Sub(e.now()).Minutes())
		e.logger.Info().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("🔄 Refreshing OAuth token...")
	}

	issuedAt := e.now()
	// x/oauth2 accepts any 2xx status and, when the response omits
	// refresh_token, carries over the one sent here. Both pass validation.
	src := e.config(app).TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: pair.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		flowErr := e.flowError(grantRefreshToken, err)
		if e.logger != nil {
			e.logger.Error().Err(flowErr).Msg("❌ Failed to refresh OAuth token")
		}
		return nil, flowErr
	}

	next, err := pairFromToken(grantRefreshToken, tok, issuedAt)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Save(ctx, next); err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info().
			Int64("new_expiry_minutes", int64(next.ExpiresAt.Sub(e.now()).Minutes())).
			Msg("✅ OAuth token refreshed successfully")
	}
	return next, nil
}

func (e *Exchanger) flowError(grant string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &AuthFlowError{
			Grant:      grant,
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
			Err:        err,
		}
	}
	return &AuthFlowError{Grant: grant, Err: err}
}

// pairFromToken validates a token endpoint response and stamps its expiry
// relative to issuedAt.
func pairFromToken(grant string, tok *oauth2.Token, issuedAt time.Time) (*tokens.TokenPair, error) {
	malformed := func(format string, args ...interface{}) error {
		return &AuthFlowError{Grant: grant, Err: fmt.Errorf("malformed token response: "+format, args...)}
	}

	if tok.AccessToken == "" {
		return nil, malformed("access_token is empty")
	}
	if !strings.EqualFold(tok.TokenType, "Bearer") {
		return nil, malformed("unsupported token_type %q", tok.TokenType)
	}
	if tok.RefreshToken == "" {
		return nil, malformed("refresh_token is empty")
	}
	expiresIn, ok := expiresInSeconds(tok.Extra("expires_in"))
	if !ok {
		return nil, malformed("expires_in must be a positive number")
	}

	return &tokens.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn * float64(time.Second))),
	}, nil
}

func expiresInSeconds(v interface{}) (float64, bool) {
	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		secs = f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		secs = f
	default:
		return 0, false
	}
	return secs, secs > 0
}
