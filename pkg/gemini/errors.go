package gemini

import "fmt"

// ErrorKind classifies a failed generation call. Every non-success outcome
// of the client maps to exactly one kind.
type ErrorKind string

const (
	ErrInvalidRequest    ErrorKind = "invalid_request"
	ErrUnauthorized      ErrorKind = "unauthorized"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrServerFault       ErrorKind = "server_fault"
	ErrTimeout           ErrorKind = "timeout"
	ErrUnreachable       ErrorKind = "unreachable"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// GenerationError is returned by the client for any failed call.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gemini: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini: %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, status int, message string) *GenerationError {
	return &GenerationError{Kind: kind, StatusCode: status, Message: message}
}
