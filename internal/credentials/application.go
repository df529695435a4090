package credentials

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dvcrn/kitsune-oauth/internal/storage"
)

// CallbackPath is where the backend sends the user after authorization
const CallbackPath = "/oauth-callback"

// ClientApplication is the OAuth client registered with the backend on
// behalf of this installation. It is created once and never modified.
type ClientApplication struct {
	ID          string `json:"id"`
	Secret      string `json:"secret"`
	RedirectURI string `json:"redirectUri"`
}

// RedirectURI builds the callback URI for a client served from origin.
func RedirectURI(origin string) string {
	return strings.TrimRight(origin, "/") + CallbackPath
}

func (a *ClientApplication) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("client id is empty")
	}
	if a.Secret == "" {
		return fmt.Errorf("client secret is empty")
	}
	u, err := url.Parse(a.RedirectURI)
	if err != nil {
		return fmt.Errorf("redirect uri: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("redirect uri %q is not an absolute URL", a.RedirectURI)
	}
	return nil
}

func decodeApplication(b []byte) (*ClientApplication, error) {
	var app ClientApplication
	if err := json.Unmarshal(b, &app); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}
	return &app, nil
}
