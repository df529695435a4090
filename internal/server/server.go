package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
	"github.com/dvcrn/kitsune-oauth/internal/credentials"
	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Authenticator drives the authorization-code flow. *auth.Exchanger implements it.
type Authenticator interface {
	AuthorizationURL(ctx context.Context) (authURL, state string, err error)
	ExchangeAuthorizationCode(ctx context.Context, code string) (*tokens.TokenPair, error)
}

// Session gives read and clear access to the stored pair. *tokens.Repository implements it.
type Session interface {
	Load(ctx context.Context) (*tokens.TokenPair, error)
	Clear(ctx context.Context) error
}

// ApplicationCache reports the registered client application without
// registering one. *credentials.Store implements it.
type ApplicationCache interface {
	Cached(ctx context.Context) (*credentials.ClientApplication, error)
}

type Options struct {
	BackendURL  string
	AdminAPIKey string

	Auth    Authenticator
	Tokens  auth.TokenSource
	Session Session
	Apps    ApplicationCache

	// Base carries proxied requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

type Server struct {
	opts   Options
	router *mux.Router
	proxy  http.Handler
	states *stateStore
	logger zerolog.Logger
}

func New(logger zerolog.Logger, opts Options) (*Server, error) {
	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		states: newStateStore(stateTTL),
		logger: logger,
	}

	proxy, err := s.newProxy()
	if err != nil {
		return nil, err
	}
	s.proxy = proxy

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/login", s.loginHandler).Methods(http.MethodGet)
	s.router.HandleFunc(credentials.CallbackPath, s.callbackHandler).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/auth").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/refresh", s.refreshHandler).Methods(http.MethodPost)
	admin.HandleFunc("/logout", s.logoutHandler).Methods(http.MethodPost)

	s.router.Handle("/graphql", s.proxy)
	s.router.PathPrefix("/api/").Handler(s.proxy)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
