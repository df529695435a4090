package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphQLRegistrarRegister(t *testing.T) {
	var got graphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"registerOauthApplication":{"id":"app-1","secret":"sec","redirectUri":"http://localhost:9879/oauth-callback"}}}`))
	}))
	defer srv.Close()

	reg := NewGraphQLRegistrar(srv.URL+"/", srv.Client())
	app, err := reg.Register(context.Background(), "Kitsune FE", "http://localhost:9879/oauth-callback")
	require.NoError(t, err)

	assert.Equal(t, &ClientApplication{ID: "app-1", Secret: "sec", RedirectURI: "http://localhost:9879/oauth-callback"}, app)
	assert.Contains(t, got.Query, "registerOauthApplication(name: $name, redirectUri: $redirect_uri)")
	assert.Equal(t, "Kitsune FE", got.Variables["name"])
	assert.Equal(t, "http://localhost:9879/oauth-callback", got.Variables["redirect_uri"])
}

func TestGraphQLRegistrarFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"graphql errors", http.StatusOK, `{"errors":[{"message":"registrations closed"},{"message":"try later"}]}`, "registrations closed\ntry later"},
		{"null data", http.StatusOK, `{"data":null}`, "empty response"},
		{"missing field", http.StatusOK, `{"data":{}}`, "empty response"},
		{"invalid application", http.StatusOK, `{"data":{"registerOauthApplication":{"id":"","secret":"s","redirectUri":"http://x/cb"}}}`, "invalid application"},
		{"http error", http.StatusInternalServerError, `boom`, "status 500: boom"},
		{"not json", http.StatusOK, `<html>`, "malformed response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewGraphQLRegistrar(srv.URL, srv.Client()).Register(context.Background(), "n", "http://localhost/oauth-callback")

			var regErr *RegistrationError
			require.ErrorAs(t, err, &regErr)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestGraphQLRegistrarTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGraphQLRegistrar(url, http.DefaultClient).Register(context.Background(), "n", "http://localhost/oauth-callback")

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Error(t, regErr.Unwrap())
}

func TestRedirectURI(t *testing.T) {
	assert.Equal(t, "https://kitsune.example/oauth-callback", RedirectURI("https://kitsune.example"))
	assert.Equal(t, "https://kitsune.example/oauth-callback", RedirectURI("https://kitsune.example/"))
}
