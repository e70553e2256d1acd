// Package perr consolidates every error this proxy can produce into one
// typed taxonomy, the way cecil-the-coder-ai-provider-kit's pkg/utils/errors.go
// consolidates provider errors into a single APIError rather than leaving
// call sites to build ad hoc http.Error strings.
package perr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a proxy error into one of the taxonomy's fixed categories.
type Kind string

const (
	Config          Kind = "config"
	Authentication  Kind = "authentication"
	InvalidRequest  Kind = "invalid_request"
	Upstream        Kind = "upstream"
	Conversion      Kind = "conversion"
	Network         Kind = "network"
	Timeout         Kind = "timeout"
	QuotaExceeded   Kind = "quota_exceeded"
)

// Error is the single error type every proxy component returns, carrying
// enough detail to render an ErrorEnvelope and pick an HTTP status without
// the caller needing to know which component produced it.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int    // HTTP status from the upstream, when Kind == Upstream or QuotaExceeded
	UpstreamBody   string // raw upstream error body, when available
	Wrapped        error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// WrapUpstream builds an Upstream (or QuotaExceeded, if the body indicates
// quota exhaustion) error from a raw upstream HTTP failure.
func WrapUpstream(status int, body string) *Error {
	kind := Upstream
	if status == http.StatusTooManyRequests && IsQuotaExhausted(body) {
		kind = QuotaExceeded
	}
	return &Error{
		Kind:           kind,
		Message:        fmt.Sprintf("upstream returned status %d", status),
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// IsQuotaExhausted distinguishes a quota-exceeded 429 from a plain rate-limit
// 429 by substring-matching the upstream error body, mirroring the
// distinction the original implementation draws between RESOURCE_EXHAUSTED
// and ordinary throttling.
func IsQuotaExhausted(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "resource_exhausted")
}

// As reports whether err is (or wraps) a *Error, and returns it.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HTTPStatus maps an error's Kind to the HTTP status the handler should
// return to the client.
func HTTPStatus(err error) int {
	pe, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch pe.Kind {
	case InvalidRequest:
		return http.StatusBadRequest
	case QuotaExceeded:
		return http.StatusTooManyRequests
	case Network, Timeout:
		return http.StatusGatewayTimeout
	case Upstream:
		if pe.UpstreamStatus >= 400 && pe.UpstreamStatus < 500 {
			return pe.UpstreamStatus
		}
		return http.StatusBadGateway
	case Config, Authentication, Conversion:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorType returns the OpenAI-style error "type" string for an error's Kind.
func ErrorType(err error) string {
	pe, ok := As(err)
	if !ok {
		return "internal_error"
	}
	switch pe.Kind {
	case InvalidRequest, Conversion:
		return "invalid_request_error"
	case Authentication:
		return "authentication_error"
	case QuotaExceeded:
		return "insufficient_quota"
	case Upstream:
		return "api_error"
	case Network, Timeout:
		return "connection_error"
	default:
		return "internal_error"
	}
}

// ErrorCode returns an optional machine-readable code string for an error,
// empty when the Kind has none.
func ErrorCode(err error) string {
	pe, ok := As(err)
	if !ok {
		return ""
	}
	if pe.Kind == QuotaExceeded {
		return "quota_exceeded"
	}
	return ""
}
