// Package apierror defines the single error shape surfaced by the API
// client and the auth subsystem. Every failure — connectivity, non-2xx
// response, refresh rejection, or a malformed local value — is normalized
// into an *Error carrying a user-facing message, an optional
// machine-readable code, and the raw response details when available.
package apierror

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories.
type Kind int

const (
	// KindGeneric covers failures that fit no other category.
	KindGeneric Kind = iota
	// KindNetwork means no response was received at all.
	KindNetwork
	// KindUnauthorized means a 401 that survived (or skipped) the
	// refresh-and-retry cycle. Callers must treat it as a forced logout.
	KindUnauthorized
	// KindServer means the server answered with a 5xx.
	KindServer
	// KindValidation means a local value (e.g. a stored token) was
	// malformed and was treated as absent.
	KindValidation
	// KindRefresh means the token refresh itself failed: no refresh token
	// was available or the refresh endpoint rejected it.
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	case KindRefresh:
		return "refresh"
	default:
		return "generic"
	}
}

// User-facing messages, matching the operations backend conventions.
const (
	MsgNetwork            = "Network error occurred. Please check your connection."
	MsgUnauthorized       = "Session expired. Please Login again."
	MsgServer             = "Server error occurred. Please try again later."
	MsgInvalidCredentials = "Invalid email or password."
	MsgGeneric            = "An error occurred. Please try again."
)

// Error is the normalized error shape: { message, code?, details? }.
type Error struct {
	Kind    Kind
	Message string
	// Code is the machine-readable code, when one exists. For HTTP
	// failures it is the status code as a decimal string.
	Code string
	// Details holds the raw error body returned by the server, if any.
	Details any
	// Cause is the underlying error, preserved for errors.Is/As chains.
	Cause error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Network reports a connectivity failure (no response received).
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: MsgNetwork, Cause: cause}
}

// Unauthorized reports a 401 after refresh failed or was exhausted.
func Unauthorized(cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: MsgUnauthorized, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// KindGeneric otherwise.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindGeneric
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// MessageForStatus maps an HTTP status code to the fallback user-facing
// message used when the response body carries no message of its own.
func MessageForStatus(status int) string {
	switch {
	case status == 401:
		return MsgUnauthorized
	case status >= 500:
		return MsgServer
	default:
		return MsgGeneric
	}
}

// KindForStatus maps an HTTP status code to an error Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindUnauthorized
	case status >= 500:
		return KindServer
	default:
		return KindGeneric
	}
}
