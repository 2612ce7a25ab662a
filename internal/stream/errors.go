package stream

import "fmt"

// statusError signals a non-2xx response from the generation endpoint.
type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("generation endpoint returned status %d", e.code)
	}
	return fmt.Sprintf("generation endpoint returned status %d: %s", e.code, e.body)
}

// Retryable reports whether the status indicates a transient condition.
func (e statusError) Retryable() bool {
	return e.code == 429 || e.code >= 500
}

// IsRetryable reports whether err is an endpoint error worth retrying.
func IsRetryable(err error) bool {
	se, ok := err.(statusError)
	return ok && se.Retryable()
}

// IsStatusError reports whether err came from a non-2xx endpoint
// response, as opposed to a transport or parse failure.
func IsStatusError(err error) bool {
	_, ok := err.(statusError)
	return ok
}
