package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	errMissingAdminKey   = errors.New("missing Authorization or X-API-Key header")
	errMalformedAdminKey = errors.New("invalid Authorization header format")
)

// adminKeyFrom extracts the key from 'Authorization: Bearer <key>' or
// 'X-API-Key: <key>'. Authorization wins when both are present.
func adminKeyFrom(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, key, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || key == "" || strings.Contains(key, " ") {
			return "", errMalformedAdminKey
		}
		return key, nil
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, nil
	}
	return "", errMissingAdminKey
}

// requireAdmin guards the /auth subrouter.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.opts.AdminAPIKey
		if want == "" {
			s.logger.Error().Msg("ADMIN_API_KEY not configured")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		got, err := adminKeyFrom(r)
		if err == nil && subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			err = errors.New("invalid admin API key")
		}
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("method", r.Method).
				Str("uri", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("🔒 Admin request rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		s.logger.Debug().Str("method", r.Method).Str("uri", r.URL.Path).Msg("Admin request authorized")
		next.ServeHTTP(w, r)
	})
}
