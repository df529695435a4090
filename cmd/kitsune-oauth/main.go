package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dvcrn/kitsune-oauth/internal/auth"
	"github.com/dvcrn/kitsune-oauth/internal/credentials"
)

const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes scripts can branch on.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, auth.ErrNotAuthenticated):
		return ExitCodeAuthRequired
	case auth.IsAuthFlowError(err):
		return ExitCodeAuthFailed
	}
	var regErr *credentials.RegistrationError
	if errors.As(err, &regErr) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}
