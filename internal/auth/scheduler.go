package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/rs/zerolog"
)

// DefaultRefreshLead is how long before expiry the scheduler refreshes
const DefaultRefreshLead = 5 * time.Minute

// Scheduler refreshes the stored pair shortly before it expires. It only
// saves a round trip for the next caller; Fetcher refreshes on demand either
// way.
type Scheduler struct {
	tokens    *tokens.Repository
	refresher Refresher
	lead      time.Duration
	logger    *zerolog.Logger
	now       func() time.Time

	mu          sync.Mutex
	timer       *time.Timer
	armedFor    time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
}

func NewScheduler(repo *tokens.Repository, refresher Refresher, lead time.Duration, logger *zerolog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	return &Scheduler{
		tokens:    repo,
		refresher: refresher,
		lead:      lead,
		logger:    logger,
		now:       time.Now,
	}
}

// Start arms the timer for the currently stored pair and re-arms it on every
// change. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	pair, err := s.tokens.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	unsubscribe := s.tokens.Subscribe(s.schedule)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.schedule(pair)
	return nil
}

func (s *Scheduler) schedule(pair *tokens.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if pair == nil {
		if s.logger != nil {
			s.logger.Debug().Msg("Background refresh: no session, timer disarmed")
		}
		return
	}

	delay := refreshDelay(pair.ExpiresAt.Sub(s.now()), s.lead)
	if s.logger != nil {
		s.logger.Debug().
			Dur("in", delay).
			Msg("Background refresh scheduled")
	}
	s.armedFor = pair.ExpiresAt
	s.timer = time.AfterFunc(delay, s.fire)
}

// refreshDelay is how long to wait before refreshing a pair with the given
// remaining lifetime. The lead never exceeds half the remaining lifetime, so a
// token that lives shorter than the lead is still used for a while before
// being replaced.
func refreshDelay(remaining, lead time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	return max(remaining-lead, remaining/2)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	closed := s.closed
	armedFor := s.armedFor
	s.mu.Unlock()
	if closed {
		return
	}

	pair, err := s.tokens.Load(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("Background refresh: failed to load token pair")
		}
		return
	}
	if pair == nil {
		return
	}
	if pair.ExpiresAt.After(armedFor) {
		// A newer pair was saved; its notification already re-armed the timer.
		return
	}

	if s.logger != nil {
		s.logger.Info().Msg("🔄 Background refresh: token expiring soon, refreshing...")
	}
	if _, err := s.refresher.Refresh(ctx, pair); err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("❌ Background refresh: failed to refresh token")
		}
		return
	}
	if s.logger != nil {
		s.logger.Info().Msg("✅ Background refresh: token refreshed successfully")
	}
}

// Close stops the timer. Pending refreshes are abandoned.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	if s.logger != nil {
		s.logger.Debug().Msg("Background token refresh stopped")
	}
}
