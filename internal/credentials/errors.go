package credentials

import "fmt"

// RegistrationError reports that the backend did not hand out a client
// application. Callers decide whether to retry.
type RegistrationError struct {
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth application registration failed: %s: %v", e.Reason, e.Err)
	}
	return "oauth application registration failed: " + e.Reason
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
