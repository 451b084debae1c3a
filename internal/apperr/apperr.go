// Package apperr is the §7 error taxonomy: a small, closed set of codes the
// HTTP layer translates to status codes, and a structured Error type that
// wraps the underlying cause for logs while keeping the user-facing message
// terse.
package apperr

import "fmt"

// Code is one of the taxonomy's fixed error codes.
type Code string

const (
	InvalidArgument Code = "INVALID_ARGUMENT"
	ArticleNotFound Code = "ARTICLE_NOT_FOUND"
	ClusterNotFound Code = "CLUSTER_NOT_FOUND"
	ClusterPending  Code = "CLUSTER_PENDING"
	InternalError   Code = "INTERNAL_ERROR"
)

// Error is a taxonomy-tagged error. The cause, if any, is never serialized
// to the client — it is for logs only.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a taxonomy error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a taxonomy error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Internal wraps an unexpected error as INTERNAL_ERROR — the catch-all for
// document-store/queue failures that reach the synchronous path.
func Internal(cause error) *Error {
	return &Error{Code: InternalError, Message: "internal error", Cause: cause}
}

// HTTPStatus maps a taxonomy code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case InvalidArgument:
		return 400
	case ArticleNotFound, ClusterNotFound, ClusterPending:
		return 404
	default:
		return 500
	}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}
