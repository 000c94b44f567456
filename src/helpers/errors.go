package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindPeerUnavailable
	KindAuthentication
	KindNotFound
	KindValidation
	KindDecrypt
	KindPeerRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindPeerUnavailable:
		return "peer_unavailable"
	case KindAuthentication:
		return "authentication_failed"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindDecrypt:
		return "decrypt_failed"
	case KindPeerRejected:
		return "peer_rejected"
	default:
		return "internal"
	}
}

// GatewayError is the root of every error this service hands to callers.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is matches any GatewayError of the same kind, so sentinel values below
// can be used with errors.Is.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrNotConnected      = &GatewayError{Kind: KindNotFound, Message: "not_connected"}
	ErrBadCredentialBlob = &GatewayError{Kind: KindDecrypt, Message: "bad credential blob"}
)

// -----------------------------------------------------------------------------

func NewPeerUnavailableError(peer string, cause error) error {
	return &GatewayError{Kind: KindPeerUnavailable, Message: fmt.Sprintf("%s unavailable", peer), Cause: cause}
}

func NewAuthenticationError(message string) error {
	return &GatewayError{Kind: KindAuthentication, Message: message}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &GatewayError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...interface{}) error {
	return &GatewayError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewDecryptError(cause error) error {
	return &GatewayError{Kind: KindDecrypt, Message: ErrBadCredentialBlob.Message, Cause: cause}
}

func NewPeerRejectedError(format string, args ...interface{}) error {
	return &GatewayError{Kind: KindPeerRejected, Message: fmt.Sprintf(format, args...)}
}

// -----------------------------------------------------------------------------

// KindOf returns the kind of the first GatewayError in the chain.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is the text safe to return to a caller. Peer outages,
// decrypt failures and unknown errors are reported generically.
func PublicMessage(err error) string {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return "internal server error"
	}
	switch ge.Kind {
	case KindPeerUnavailable:
		return "trading service temporarily unavailable"
	case KindDecrypt, KindInternal:
		return "internal server error"
	default:
		return ge.Message
	}
}

// HTTPStatus maps an error onto the REST status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPeerRejected:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPeerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times with exponential backoff,
// giving up early when ctx is done.
func RetryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
