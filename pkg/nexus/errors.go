package nexus

import (
	"errors"
	"fmt"
)

// ErrorKind tags a facade error so callers can branch without string
// matching.
type ErrorKind string

const (
	// KindConfiguration marks invalid or incomplete client configuration.
	KindConfiguration ErrorKind = "configuration"
	// KindRpc marks a failed ledger call.
	KindRpc ErrorKind = "rpc"
	// KindParsing marks a response that could not be interpreted.
	KindParsing ErrorKind = "parsing"
	// KindTransactionBuilding marks a transaction that could not be composed.
	KindTransactionBuilding ErrorKind = "transaction_building"
	// KindTimeout marks a transaction that was not confirmed in time.
	KindTimeout ErrorKind = "timeout"
	// KindWallet marks signing and execution failures.
	KindWallet ErrorKind = "wallet"
)

// Error is the facade's error value: a kind tag, a human-readable reason and
// an optional ledger or HTTP status code.
type Error struct {
	Kind       ErrorKind
	Reason     string
	StatusCode int // zero when not applicable
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries the given facade error kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

func configurationf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Reason: fmt.Sprintf(format, args...)}
}

func rpcError(reason string, err error) *Error {
	return &Error{Kind: KindRpc, Reason: reason, Err: err}
}

func parsingf(format string, args ...any) *Error {
	return &Error{Kind: KindParsing, Reason: fmt.Sprintf(format, args...)}
}

func buildError(err error) *Error {
	return &Error{Kind: KindTransactionBuilding, Reason: err.Error(), Err: err}
}

func timeoutf(format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Reason: fmt.Sprintf(format, args...)}
}

func walletError(reason string, err error) *Error {
	return &Error{Kind: KindWallet, Reason: reason, Err: err}
}
