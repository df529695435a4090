//go:build js && wasm

package server

import "net/http"

// NewHTTPClient creates the client used for backend calls inside Workers.
// The runtime enforces its own subrequest limits, so no timeout is set.
func NewHTTPClient() *http.Client {
	return &http.Client{}
}
