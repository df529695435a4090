package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dvcrn/kitsune-oauth/internal/tokens"
	"github.com/rs/zerolog"
)

// TokenSource is what Transport needs from a Fetcher
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (*tokens.TokenPair, error)
}

// Transport attaches the current access token to outgoing requests. If a
// token cannot be obtained the request is not sent. A 401 answer triggers
// one forced refresh and a retry, provided the request body can be replayed.
type Transport struct {
	Source TokenSource
	Base   http.RoundTripper
	Logger *zerolog.Logger
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.AccessToken(req.Context())
	if err != nil {
		closeBody(req)
		return nil, err
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	if t.Logger != nil {
		t.Logger.Warn().Msg("Received 401 Unauthorized, attempting token refresh...")
	}

	pair, err := t.Source.ForceRefresh(req.Context())
	if err != nil {
		if t.Logger != nil {
			t.Logger.Error().Err(err).Msg("Failed to refresh credentials after 401 error")
		}
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	drain(resp)

	if t.Logger != nil {
		t.Logger.Info().Msg("Successfully refreshed credentials, retrying request...")
	}
	resp, err = t.base().RoundTrip(withBearer(retry, pair.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized && t.Logger != nil {
		t.Logger.Error().Msg("Still received 401 after token refresh, giving up")
	}
	return resp, nil
}

// withBearer returns a copy of req carrying token. RoundTrippers must not
// modify the caller's request.
func withBearer(req *http.Request, token string) *http.Request {
	if token == "" {
		return req
	}
	out := req.Clone(req.Context())
	out.Body = req.Body
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
