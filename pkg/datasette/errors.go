package datasette

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so tool callers can distinguish caller-fixable
// problems from upstream ones.
type Kind string

const (
	// KindUnknownInstance means the requested instance id is not configured.
	KindUnknownInstance Kind = "unknown_instance"

	// KindConfiguration means the server configuration is invalid. These
	// errors are startup-fatal and never reach a tool caller.
	KindConfiguration Kind = "configuration"

	// KindInvalidArgument means a tool argument failed validation.
	KindInvalidArgument Kind = "invalid_argument"

	// KindAuthentication means the upstream rejected our credentials (401/403).
	KindAuthentication Kind = "authentication"

	// KindNotFound means the database or table does not exist upstream (404).
	KindNotFound Kind = "not_found"

	// KindQuery means the upstream rejected the query itself (400), typically
	// malformed SQL. The upstream message is preserved verbatim.
	KindQuery Kind = "query"

	// KindUpstreamUnavailable covers network failures, timeouts, 5xx
	// responses, and unparseable upstream payloads.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a classified failure from the datasette layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified error with a formatted message.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds a classified error preserving the cause for errors.Is/As.
func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of err, or the empty Kind when err does
// not carry one.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
