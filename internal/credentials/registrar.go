package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultApplicationName is the name the client registers itself under
const DefaultApplicationName = "Kitsune FE"

const registerMutation = `mutation registerOauthApplication($name: String!, $redirect_uri: String!) {
  registerOauthApplication(name: $name, redirectUri: $redirect_uri) {
    id
    secret
    redirectUri
  }
}`

// Registrar creates a new client application on the backend.
type Registrar interface {
	Register(ctx context.Context, name, redirectURI string) (*ClientApplication, error)
}

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GraphQLRegistrar registers applications through the backend's GraphQL
// endpoint with a single mutation.
type GraphQLRegistrar struct {
	endpoint   string
	httpClient HTTPClient
}

// NewGraphQLRegistrar targets {backendURL}/graphql.
func NewGraphQLRegistrar(backendURL string, httpClient HTTPClient) *GraphQLRegistrar {
	return &GraphQLRegistrar{
		endpoint:   strings.TrimRight(backendURL, "/") + "/graphql",
		httpClient: httpClient,
	}
}

type graphQLRequest struct {
	Query         string            `json:"query"`
	OperationName string            `json:"operationName"`
	Variables     map[string]string `json:"variables"`
}

type graphQLResponse struct {
	Data *struct {
		RegisterOauthApplication *ClientApplication `json:"registerOauthApplication"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *GraphQLRegistrar) Register(ctx context.Context, name, redirectURI string) (*ClientApplication, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:         registerMutation,
		OperationName: "registerOauthApplication",
		Variables: map[string]string{
			"name":         name,
			"redirect_uri": redirectURI,
		},
	})
	if err != nil {
		return nil, &RegistrationError{Reason: "failed to encode mutation", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RegistrationError{Reason: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &RegistrationError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RegistrationError{Reason: "failed to read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RegistrationError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var out graphQLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RegistrationError{Reason: "malformed response", Err: err}
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &RegistrationError{Reason: strings.Join(msgs, "\n")}
	}
	if out.Data == nil || out.Data.RegisterOauthApplication == nil {
		return nil, &RegistrationError{Reason: "empty response from server"}
	}

	app := out.Data.RegisterOauthApplication
	if err := app.Validate(); err != nil {
		return nil, &RegistrationError{Reason: "server returned an invalid application", Err: err}
	}
	return app, nil
}
