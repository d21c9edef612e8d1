package restclient

import "fmt"

// ValidationError reports bad input caught before any network call. Reason is
// a user-displayable string.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// TransportError reports a network failure or a non-2xx response. For HTTP
// errors StatusCode is set and Body carries the server's error body verbatim.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
