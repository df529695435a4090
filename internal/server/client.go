//go:build !js || !wasm

package server

import (
	"net/http"
	"time"
)

// NewHTTPClient creates the client used for backend calls in regular environments
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
	}
}
