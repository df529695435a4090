package auth

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation needs a session and none is stored
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthFlowError reports a failed exchange against the token endpoint. When
// the backend answered, StatusCode and the raw Body are kept for diagnostics.
// Callers should treat it as "the user has to log in again".
type AuthFlowError struct {
	Grant      string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthFlowError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oauth %s flow unsuccessful: status %d: %s", e.Grant, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("oauth %s flow unsuccessful: %v", e.Grant, e.Err)
}

func (e *AuthFlowError) Unwrap() error {
	return e.Err
}

// IsAuthFlowError reports whether err (or anything it wraps) is an AuthFlowError.
func IsAuthFlowError(err error) bool {
	var flowErr *AuthFlowError
	return errors.As(err, &flowErr)
}
