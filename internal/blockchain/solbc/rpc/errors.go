// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoActiveClients is returned when every endpoint is marked inactive.
	ErrNoActiveClients = errors.New("no active RPC clients available")

	// ErrRateLimit is returned when an endpoint answers 429.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidResponse is returned for malformed responses.
	ErrInvalidResponse = errors.New("invalid RPC response")

	// ErrConnectionFailed is returned when the endpoint cannot be reached.
	ErrConnectionFailed = errors.New("connection failed")
)

// Error is an RPC failure with the endpoint and method that produced it.
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with endpoint context and classifies well-known
// transport failures onto the sentinel errors above.
func NewError(err error, nodeURL, method string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Err:     classify(err),
		NodeURL: nodeURL,
		Method:  method,
	}
}

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

func classify(err error) error {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return &classified{kind: ErrRateLimit, err: err}
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return &classified{kind: ErrTimeout, err: err}
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "fetch failed"),
		strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return &classified{kind: ErrConnectionFailed, err: err}
	}
	return err
}

// IsTransient reports whether err is a network failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	err = classify(err)
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrNoActiveClients)
}

// IsCritical reports errors no retry can fix.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidResponse) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid request") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden")
}
