package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error.  Handlers map kinds to HTTP statuses;
// everything except KindStore and KindMisconfigured is expected control
// flow and carries a message safe to show to the caller.
type Kind int

const (
	KindValidation     Kind = iota + 1 // malformed or missing input, rejected before store access
	KindAuthentication                 // bad or missing credentials
	KindAuthorization                  // valid caller, insufficient rights
	KindConflict                       // placement or identity already taken
	KindNotFound                       // unknown reservation id
	KindWindowClosed                   // outside the booking window
	KindWeakCredential                 // password rejected by policy
	KindMisconfigured                  // server cannot evaluate admin credentials
	KindStore                          // unexpected persistence failure
)

// Stable error codes returned to clients.
const (
	CodeValidation         = "ValidationFailed"
	CodeWindowClosed       = "WindowClosed"
	CodeWeakCredential     = "WeakCredential"
	CodePlacementTaken     = "PlacementTaken"
	CodeDuplicateDetected  = "DuplicateDetected"
	CodeCredentialMismatch = "CredentialMismatch"
	CodeDeviceMismatch     = "DeviceMismatch"
	CodeNotFound           = "NotFound"
	CodeAdminRequired      = "AdminAuthRequired"
	CodeAdminRejected      = "AdminUnauthorized"
	CodeAdminForbidden     = "AdminForbidden"
	CodeMisconfigured      = "ServerMisconfigured"
	CodeStore              = "StoreFailure"
)

// Error is the typed error returned by every service operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindStore for errors that did not come
// from this package.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func invalid(format string, args ...any) *Error {
	return newErr(KindValidation, CodeValidation, fmt.Sprintf(format, args...))
}

func storeErr(op string, err error) *Error {
	return &Error{Kind: KindStore, Code: CodeStore, Message: "storage failure", Err: fmt.Errorf("%s: %w", op, err)}
}

var (
	errWindowClosed   = newErr(KindWindowClosed, CodeWindowClosed, "reservations are not open right now")
	errWeakPassword   = newErr(KindWeakCredential, CodeWeakCredential, "password is too easy to guess")
	errPlacementTaken = newErr(KindConflict, CodePlacementTaken, "this seat is already reserved")
	errNotFound       = newErr(KindNotFound, CodeNotFound, "reservation not found")
	errDeviceMismatch = newErr(KindAuthorization, CodeDeviceMismatch, "reservation is bound to another device")
	errMisconfigured  = newErr(KindMisconfigured, CodeMisconfigured, "server misconfigured: admin secret is not set")
	errAdminRequired  = newErr(KindAuthentication, CodeAdminRequired, "admin credentials required")
	errAdminRejected  = newErr(KindAuthentication, CodeAdminRejected, "invalid admin credentials")
	errAdminForbidden = newErr(KindAuthorization, CodeAdminForbidden, "admin is not allowed")
)
