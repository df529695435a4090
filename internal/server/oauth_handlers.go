package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
	"github.com/dvcrn/kitsune-oauth/internal/credentials"
	"github.com/dvcrn/kitsune-oauth/internal/tokens"
)

const stateTTL = 10 * time.Minute

// stateStore remembers the state values handed out by /login until the
// callback consumes them.
type stateStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{ttl: ttl, now: time.Now, pending: make(map[string]time.Time)}
}

func (s *stateStore) add(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, deadline := range s.pending {
		if now.After(deadline) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = now.Add(s.ttl)
}

// consume reports whether state was handed out and has not expired. A state
// is accepted at most once.
func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.pending[state]
	if !ok {
		return false
	}
	delete(s.pending, state)
	return !s.now().After(deadline)
}

type sessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	Expired       bool       `json:"expired,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ClientID      string     `json:"client_id,omitempty"`
}

func statusOf(pair *tokens.TokenPair) sessionStatus {
	if pair == nil {
		return sessionStatus{}
	}
	expiresAt := pair.ExpiresAt
	return sessionStatus{
		Authenticated: true,
		Expired:       pair.Expired(time.Now(), 0),
		ExpiresAt:     &expiresAt,
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := s.opts.Auth.AuthorizationURL(r.Context())
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.states.add(state)

	s.logger.Info().Msg("🔑 Redirecting to backend authorization page")
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) callbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		s.logger.Warn().Str("error", errCode).Str("description", q.Get("error_description")).Msg("Authorization denied")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errCode, "error_description": q.Get("error_description")})
		return
	}

	if !s.states.consume(q.Get("state")) {
		s.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("OAuth callback with unknown or expired state")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_state"})
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_code"})
		return
	}

	pair, err := s.opts.Auth.ExchangeAuthorizationCode(r.Context(), code)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusOf(pair))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	pair, err := s.opts.Session.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load session")
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	status := statusOf(pair)
	if s.opts.Apps != nil {
		app, err := s.opts.Apps.Cached(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load client application")
		} else if app != nil {
			status.ClientID = app.ID
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	pair, err := s.opts.Tokens.ForceRefresh(r.Context())
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(pair))
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Session.Clear(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, "Failed to clear session", http.StatusInternalServerError)
		return
	}
	s.logger.Info().Msg("👋 Session cleared")
	writeJSON(w, http.StatusOK, statusOf(nil))
}

// writeAuthError maps token lifecycle failures onto responses. Backend
// rejections keep the backend's status and body for the caller to inspect.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var flowErr *auth.AuthFlowError
	var regErr *credentials.RegistrationError

	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not_authenticated"})
	case errors.As(err, &flowErr):
		s.logger.Error().Err(err).Msg("❌ OAuth flow unsuccessful")
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":          "oauth_flow_unsuccessful",
			"grant":          flowErr.Grant,
			"backend_status": flowErr.StatusCode,
			"backend_body":   flowErr.Body,
		})
	case errors.As(err, &regErr):
		s.logger.Error().Err(err).Msg("❌ Client application registration failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "registration_failed",
			"reason": regErr.Reason,
		})
	default:
		s.logger.Error().Err(err).Msg("Auth request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
