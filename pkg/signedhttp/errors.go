// Package signedhttp implements the v1 mutual-authentication protocol
// between Leaders and Tools: detached ed25519 signatures over declaration-
// order JSON claims, carried in three HTTP headers, with replay protection
// on the responder side.
package signedhttp

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable error tag. CLI surfaces print the kind,
// the reason and the optional status code so tools can branch
// programmatically.
type ErrorKind string

const (
	// Protocol errors.
	KindMissingHeader       ErrorKind = "missing_header"
	KindUnsupportedVersion  ErrorKind = "unsupported_version"
	KindInvalidBase64       ErrorKind = "invalid_base64"
	KindInvalidSignatureLen ErrorKind = "invalid_signature_length"
	KindInvalidSignedInput  ErrorKind = "invalid_signed_input_json"

	// Binding errors.
	KindToolIDMismatch         ErrorKind = "tool_id_mismatch"
	KindMethodMismatch         ErrorKind = "method_mismatch"
	KindPathMismatch           ErrorKind = "path_mismatch"
	KindQueryMismatch          ErrorKind = "query_mismatch"
	KindBodyHashMismatch       ErrorKind = "body_hash_mismatch"
	KindStatusMismatch         ErrorKind = "status_mismatch"
	KindRequestBindingMismatch ErrorKind = "request_binding_mismatch"

	// Time window errors.
	KindInvalidTimeWindow ErrorKind = "invalid_time_window"
	KindValidityTooLarge  ErrorKind = "validity_too_large"
	KindNotYetValid       ErrorKind = "not_yet_valid"
	KindExpired           ErrorKind = "expired"

	// Key errors.
	KindUnknownInvokerKey         ErrorKind = "unknown_invoker_key"
	KindUnknownResponderKey       ErrorKind = "unknown_responder_key"
	KindInvalidInvokerPublicKey   ErrorKind = "invalid_invoker_public_key"
	KindInvalidResponderPublicKey ErrorKind = "invalid_responder_public_key"
	KindInvalidSignature          ErrorKind = "invalid_signature"
)

// Error is a typed signed-HTTP failure. Never an opaque string.
type Error struct {
	Kind       ErrorKind
	Reason     string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches errors by kind, so callers can use errors.Is with a bare-kind
// sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind of err, or empty when err is not a
// signed-HTTP error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
