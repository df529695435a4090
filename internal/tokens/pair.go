package tokens

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
)

// TokenPair is an authenticated session: the bearer token sent with API
// requests, the token used to renew it, and the instant the bearer expires.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token must be renewed at now. A
// positive leeway treats tokens that expire within it as already expired.
func (p *TokenPair) Expired(now time.Time, leeway time.Duration) bool {
	return !now.Before(p.ExpiresAt.Add(-leeway))
}

func (p *TokenPair) Validate() error {
	switch {
	case p.AccessToken == "":
		return fmt.Errorf("access token is empty")
	case p.RefreshToken == "":
		return fmt.Errorf("refresh token is empty")
	case p.ExpiresAt.IsZero():
		return fmt.Errorf("expiry is not set")
	}
	return nil
}

// storedPair is the persisted layout. expiresAt is written and read back as
// RFC 3339 with nanoseconds so the round trip is lossless.
type storedPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func encode(p *TokenPair) ([]byte, error) {
	return json.Marshal(storedPair{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
}

func decode(b []byte) (*TokenPair, error) {
	var s storedPair
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, s.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: expiresAt: %v", storage.ErrCorrupted, err)
	}

	p := &TokenPair{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}
	return p, nil
}
