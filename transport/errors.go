package transport

import (
	"errors"
	"fmt"
)

// ClientError is a 4xx response from the provisioning API. The request will
// not succeed on repetition, so it is never retried.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("provisioning API returned client error %d: %s", e.StatusCode, e.Body)
}

// ServerError is a 5xx response from the provisioning API. It is retried up
// to the configured maximum before being surfaced.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provisioning API returned server error %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether an Execute failure may succeed on repetition:
// server errors and connection-level failures are retryable, client errors
// are not.
func IsRetryable(err error) bool {
	var clientErr *ClientError
	return !errors.As(err, &clientErr)
}
