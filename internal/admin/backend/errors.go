package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated is returned when no console session exists or the backend rejects the bearer token.
	ErrUnauthenticated = errors.New("backend: unauthenticated")
	// ErrExpired indicates the backend reported that a QR code or login session timed out.
	ErrExpired = errors.New("backend: expired")
	// ErrNotConfigured is returned by services constructed without a client.
	ErrNotConfigured = errors.New("backend: client not configured")
)

// Kind classifies an error into the taxonomy surfaced to operators.
type Kind string

const (
	KindNone            Kind = ""
	KindUnauthenticated Kind = "unauthenticated"
	KindRejected        Kind = "backend_rejected"
	KindNetwork         Kind = "network_failure"
	KindExpired         Kind = "expired"
	KindUnknown         Kind = "unknown"
)

// APIError reports an envelope whose code is not a success code.
type APIError struct {
	Status  int
	Code    int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request rejected"
	}
	return fmt.Sprintf("backend: rejected (code=%d status=%d): %s", e.Code, e.Status, msg)
}

// NetworkError wraps transport failures where no envelope was received.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: %s: request failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// KindOf maps err onto the error taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrUnauthenticated) {
		return KindUnauthenticated
	}
	if errors.Is(err, ErrExpired) {
		return KindExpired
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return KindRejected
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// IsNetwork reports whether err is a transport level failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// Message returns the backend supplied message for rejected requests, or fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
