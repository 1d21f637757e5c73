// Package riot is the typed gateway to the remote game-statistics API. Every
// live call is gated by the rate limiter and guarded by the health layer.
package riot

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnauthorized indicates an invalid API credential. It is fatal for the
// whole run: no amount of retrying fixes a bad key.
var ErrUnauthorized = errors.New("unauthorized: invalid API credential")

// ErrNotFound marks a permanent 404; the resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrBadRequest marks a permanent 400; the request itself is malformed.
var ErrBadRequest = errors.New("bad request")

// PlatformUnavailableError is returned while a platform's circuit is open.
// No network call was attempted and no rate-limit permit was consumed.
type PlatformUnavailableError struct {
	Platform string
}

func (e *PlatformUnavailableError) Error() string {
	return fmt.Sprintf("platform %s unavailable: circuit open", e.Platform)
}

// RateLimitedError reports a 429 that slipped through the limiter. It is
// retryable; RetryAfter carries the server's cool-down hint when present.
type RateLimitedError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("platform %s throttled (retry after %s)", e.Platform, e.RetryAfter)
}

// TransientError wraps network failures and 5xx responses. Retried per the
// adaptive retry policy and counted toward the breaker once exhausted.
type TransientError struct {
	Platform   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure on %s: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("transient failure on %s: status %d", e.Platform, e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ParseError reports a malformed payload. It is a data problem for the given
// request only and never feeds the circuit breaker.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsFatal reports whether err should abort the entire run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnavailable reports whether err is a circuit-open fast failure.
func IsUnavailable(err error) bool {
	var pu *PlatformUnavailableError
	return errors.As(err, &pu)
}

// IsTransient reports whether err represents a recoverable failure.
func IsTransient(err error) bool {
	var te *TransientError
	var rl *RateLimitedError
	return errors.As(err, &te) || errors.As(err, &rl)
}

// platformResponded reports whether err carries a completed HTTP response.
// Even a 404 or a 429 proves the platform is up and answering.
func platformResponded(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest) {
		return true
	}
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// isConnectError detects DNS or connection-level failures that justify
// falling back to an alternate platform host.
func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
