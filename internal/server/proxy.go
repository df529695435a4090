package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
)

// maxReplayBody bounds how much of a request body is buffered so the request
// can be replayed after a token refresh.
const maxReplayBody = 8 << 20

func (s *Server) newProxy() (http.Handler, error) {
	target, err := url.Parse(s.opts.BackendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", s.opts.BackendURL)
	}

	transport := &auth.Transport{
		Source: s.opts.Tokens,
		Base:   s.opts.Base,
		Logger: &s.logger,
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			// Callers may authenticate to the proxy itself; that key must not
			// reach the backend.
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("X-API-Key")
		},
		Transport:    transport,
		ErrorHandler: s.proxyErrorHandler,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := bufferBody(r); err != nil {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		rp.ServeHTTP(w, r)
	}), nil
}

func (s *Server) proxyErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrNotAuthenticated) || auth.IsAuthFlowError(err) {
		s.logger.Warn().Err(err).Str("uri", r.URL.Path).Msg("⚠️  Session no longer valid, reauthentication required")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "reauthentication_required"})
		return
	}

	s.logger.Error().Err(err).Str("uri", r.URL.Path).Msg("Error making request to backend")
	http.Error(w, "Failed to communicate with upstream API", http.StatusBadGateway)
}

// bufferBody reads the request body into memory and makes it replayable.
func bufferBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxReplayBody {
		return errors.New("request body too large")
	}

	r.ContentLength = int64(len(body))
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}
