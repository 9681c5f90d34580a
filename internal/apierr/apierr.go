// Package apierr defines the error kinds propagated between the pipeline
// components and the registry read API, and how each kind maps onto the
// HTTP error envelope.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error categories from the registry's error handling design.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTransient           Kind = "transient"
	KindInternal            Kind = "internal"
)

// Error wraps an underlying cause with a Kind and a friendly, user-visible message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, carrying cause for logging while
// keeping message as the only text a client ever sees.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts an *Error from err via errors.As, reporting ok=false when err
// does not wrap one (the caller should then treat it as KindInternal).
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether workers should retry (negative-ack) on this kind.
func (k Kind) IsRetryable() bool {
	switch k {
	case KindTransient, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the status code the read API returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ShortCode is the stable machine-readable string in the {error: "<short>"} envelope.
func (k Kind) ShortCode() string {
	return string(k)
}
