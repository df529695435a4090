package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/rs/zerolog"
)

// Refresher exchanges a refresh token for a new pair. *Exchanger implements it.
type Refresher interface {
	Refresh(ctx context.Context, pair *tokens.TokenPair) (*tokens.TokenPair, error)
}

// Fetcher hands out a valid access token, refreshing it when it has expired
type Fetcher struct {
	tokens    *tokens.Repository
	refresher Refresher
	leeway    time.Duration
	logger    *zerolog.Logger
	now       func() time.Time

	// lifetime of the last pair this fetcher obtained, keyed by its expiry
	mu         sync.Mutex
	lastExpiry time.Time
	lastIssued time.Time
}

// NewFetcher creates a fetcher. A token is treated as expired leeway before
// its recorded expiry.
func NewFetcher(repo *tokens.Repository, refresher Refresher, leeway time.Duration, logger *zerolog.Logger) *Fetcher {
	return &Fetcher{
		tokens:    repo,
		refresher: refresher,
		leeway:    leeway,
		logger:    logger,
		now:       time.Now,
	}
}

// AccessToken returns the access token to attach to outgoing requests. It
// returns an empty string and no error when nobody is logged in.
func (f *Fetcher) AccessToken(ctx context.Context) (string, error) {
	pair, err := f.tokens.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token pair: %w", err)
	}
	if pair == nil {
		if f.logger != nil {
			f.logger.Debug().Msg("No OAuth session stored")
		}
		return "", nil
	}

	if !pair.Expired(f.now(), f.leewayFor(pair)) {
		if f.logger != nil {
			f.logger.Debug().
				Int64("minutes_until_expiry", int64(pair.ExpiresAt.Sub(f.now()).Minutes())).
				Msg("✅ OAuth token is still valid")
		}
		return pair.AccessToken, nil
	}

	if f.logger != nil {
		f.logger.Info().Msg("🔄 OAuth token expired or expiring soon, refreshing...")
	}
	next, err := f.refresh(ctx, pair)
	if err != nil {
		return "", err
	}
	return next.AccessToken, nil
}

// leewayFor returns the leeway for pair, capped at half its lifetime when this
// fetcher obtained it.
func (f *Fetcher) leewayFor(pair *tokens.TokenPair) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastExpiry.IsZero() || !pair.ExpiresAt.Equal(f.lastExpiry) {
		return f.leeway
	}
	return min(f.leeway, pair.ExpiresAt.Sub(f.lastIssued)/2)
}

func (f *Fetcher) refresh(ctx context.Context, pair *tokens.TokenPair) (*tokens.TokenPair, error) {
	issuedAt := f.now()
	next, err := f.refresher.Refresh(ctx, pair)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.lastExpiry = next.ExpiresAt
	f.lastIssued = issuedAt
	f.mu.Unlock()
	return next, nil
}

// ForceRefresh refreshes the stored pair regardless of its expiry
func (f *Fetcher) ForceRefresh(ctx context.Context) (*tokens.TokenPair, error) {
	pair, err := f.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token pair: %w", err)
	}
	if pair == nil {
		return nil, ErrNotAuthenticated
	}
	return f.refresh(ctx, pair)
}
