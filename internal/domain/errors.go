// internal/domain/errors.go
package domain

import "errors"

type ErrorKind string

const (
	KindVendorNotFound      ErrorKind = "vendor_not_found"
	KindVendorExists        ErrorKind = "vendor_exists"
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindInvalidAmount       ErrorKind = "invalid_amount"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindGatewayUnavailable  ErrorKind = "gateway_unavailable"
	KindUnknownCallback     ErrorKind = "unknown_callback"
	KindDuplicateCallback   ErrorKind = "duplicate_callback"
	KindInvalidCallback     ErrorKind = "invalid_callback"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindConcurrentConflict  ErrorKind = "concurrent_conflict"
	KindStorageUnavailable  ErrorKind = "storage_unavailable"
	KindInternal            ErrorKind = "internal"
)

// Error carries a stable kind and a message that is safe to show to callers.
// The wrapped cause is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrVendorNotFound)
// holds for wrapped and re-messaged variants alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrVendorNotFound      = &Error{Kind: KindVendorNotFound, Message: "vendor not found"}
	ErrVendorExists        = &Error{Kind: KindVendorExists, Message: "vendor already registered"}
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount, Message: "amount must be greater than 0"}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrGatewayUnavailable  = &Error{Kind: KindGatewayUnavailable, Message: "payment gateway unavailable"}
	ErrUnknownCallback     = &Error{Kind: KindUnknownCallback, Message: "no payment intent for callback"}
	ErrDuplicateCallback   = &Error{Kind: KindDuplicateCallback, Message: "payment intent already resolved"}
	ErrInvalidCallback     = &Error{Kind: KindInvalidCallback, Message: "invalid callback payload"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance for withdrawal"}
	ErrConcurrentConflict  = &Error{Kind: KindConcurrentConflict, Message: "concurrent update conflict"}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "internal error"}
)

// Wrap attaches cause to a copy of the sentinel.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// WithMessage returns a copy of the sentinel with a more specific caller-facing message.
func WithMessage(sentinel *Error, msg string) *Error {
	return &Error{Kind: sentinel.Kind, Message: msg}
}

// KindOf reports the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err without its cause.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ErrInternal.Message
}
