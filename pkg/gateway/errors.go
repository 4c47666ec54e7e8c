package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports a phone or email lookup that matched no identity.
	ErrNotFound = errors.New("identity not found")
)

// TransportError wraps network-level failures: connection refused, TLS
// handshake, timeouts. Retrying is the caller's decision.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ClientError is an HTTP 4xx response from the gateway. The body usually
// carries a human-readable reason.
type ClientError struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("gateway rejected request: %d %s", e.StatusCode, e.Body)
}

// ServerError is an HTTP 5xx response from the gateway.
type ServerError struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway server error: %d %s", e.StatusCode, e.Body)
}
