package platform

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned for any request issued against a closed client,
// including callers that were still waiting for a concurrency slot.
var ErrClientClosed = errors.New("platform: client closed")

// TransportError wraps a network-level failure (dial, timeout, canceled
// context) before any HTTP status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("platform: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx HTTP status from the platform.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("platform: http status %d", e.Status)
}

// APILogicError reports a 2xx response whose envelope carried a non-zero
// business code.
type APILogicError struct {
	Code    int
	Message string
}

func (e *APILogicError) Error() string {
	return fmt.Sprintf("platform: api error %d: %s", e.Code, e.Message)
}
