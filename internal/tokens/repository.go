package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/rs/zerolog"
)

// StorageKey is the storage entry holding the current token pair
const StorageKey = "oauth_token"

// Repository is the single owner of the persisted token pair. Every component
// that reads or replaces the session goes through the same instance so that
// subscribers observe each change.
type Repository struct {
	store  storage.Storage
	logger *zerolog.Logger

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(*TokenPair)
}

func NewRepository(store storage.Storage, logger *zerolog.Logger) *Repository {
	return &Repository{
		store:       store,
		logger:      logger,
		subscribers: make(map[int]func(*TokenPair)),
	}
}

// Load returns the stored pair, or nil when there is no session. Entries
// that fail validation are deleted and reported as nil.
func (r *Repository) Load(ctx context.Context) (*TokenPair, error) {
	b, err := r.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err == nil {
		var pair *TokenPair
		if pair, err = decode(b); err == nil {
			return pair, nil
		}
	}
	if !errors.Is(err, storage.ErrCorrupted) {
		return nil, fmt.Errorf("failed to load token pair: %w", err)
	}

	if r.logger != nil {
		r.logger.Warn().Err(err).Msg("Discarding unreadable stored token pair")
	}
	if err := r.store.Delete(ctx, StorageKey); err != nil && r.logger != nil {
		r.logger.Error().Err(err).Msg("Failed to delete unreadable token pair")
	}
	return nil, nil
}

// Save replaces the stored pair with a single write and notifies subscribers.
func (r *Repository) Save(ctx context.Context, pair *TokenPair) error {
	if pair == nil {
		return fmt.Errorf("cannot save a nil token pair")
	}
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid token pair: %w", err)
	}

	b, err := encode(pair)
	if err != nil {
		return fmt.Errorf("failed to encode token pair: %w", err)
	}
	if err := r.store.Set(ctx, StorageKey, b); err != nil {
		return fmt.Errorf("failed to save token pair: %w", err)
	}

	r.notify(pair)
	return nil
}

// Clear removes the stored pair and notifies subscribers with nil.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear token pair: %w", err)
	}
	r.notify(nil)
	return nil
}

// Subscribe registers fn to be called with every saved pair, and with nil
// when the session is cleared. fn runs on the goroutine that made the change
// and must not block. The returned function removes the subscription.
func (r *Repository) Subscribe(fn func(*TokenPair)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Watch forwards changes made by other processes to subscribers when the
// backend supports it. Backends without change notification are a no-op.
func (r *Repository) Watch(ctx context.Context) error {
	w, ok := r.store.(storage.Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, StorageKey, func() {
		pair, err := r.Load(ctx)
		if err != nil {
			if r.logger != nil {
				r.logger.Error().Err(err).Msg("Failed to reload token pair after external change")
			}
			return
		}
		r.notify(pair)
	})
}

func (r *Repository) notify(pair *TokenPair) {
	r.mu.Lock()
	fns := make([]func(*TokenPair), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(pair)
	}
}
