package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure so callers can make uniform retry and
// user-messaging decisions without inspecting transport details.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindConnectionError Kind = "connection_error"
	KindInvalidResponse Kind = "invalid_response"
	KindNotFound        Kind = "not_found"
	KindRemoteRejected  Kind = "remote_rejected"
	KindInternal        Kind = "internal"
)

// Error is the only error type that crosses the gateway boundary. Message is
// safe to show to operators: it never contains the credential or raw
// transport error text.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the failure kind from an error chain. Non-gateway errors
// classify as internal.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindInternal
}

// Retryable reports whether a failure of this kind may succeed on retry.
// Mutations are not assumed idempotent, so the gateway itself never retries;
// this is advice for callers that know their call is safe to repeat.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindConnectionError
}
