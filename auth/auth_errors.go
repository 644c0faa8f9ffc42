package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure an AuthBackend can report
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindAlreadyExists      ErrorKind = "already_exists"
	KindValidationFailed   ErrorKind = "validation_failed"
	KindNetworkFailure     ErrorKind = "network_failure"
	KindProviderError      ErrorKind = "provider_error"
	KindSessionExpired     ErrorKind = "session_expired"
	KindNotFound           ErrorKind = "not_found"
	KindMalformedStore     ErrorKind = "malformed_store"
)

// Error is the typed error returned by every AuthBackend operation.
// Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Field   string // ValidationFailed only: the offending field
	Code    string // ProviderError / NetworkFailure: the provider's code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target with a Field or Code
// set only matches errors carrying the same value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Field != "" && t.Field != e.Field {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return true
}

// CodeStoreUnavailable marks a store that could not be read or written
const CodeStoreUnavailable = "store/unavailable"

// Sentinels for errors.Is
var (
	InvalidCredentialsErr = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	AlreadyExistsErr      = &Error{Kind: KindAlreadyExists, Message: "user already exists"}
	ValidationFailedErr   = &Error{Kind: KindValidationFailed}
	NetworkFailureErr     = &Error{Kind: KindNetworkFailure, Message: "network failure, please try again"}
	ProviderErr           = &Error{Kind: KindProviderError}
	SessionExpiredErr     = &Error{Kind: KindSessionExpired, Message: "your session has expired"}
	NotFoundErr           = &Error{Kind: KindNotFound, Message: "user not found"}
	MalformedStoreErr     = &Error{Kind: KindMalformedStore, Message: "stored data is corrupt"}
)

// ValidationFailed reports an invalid input field
func ValidationFailed(field, message string) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Message: message}
}

// ProviderError wraps an unmapped remote provider failure
func ProviderError(code string, err error) *Error {
	return &Error{Kind: KindProviderError, Code: code, Message: "authentication provider error (" + code + ")", Err: err}
}

// NetworkFailure wraps a connectivity failure talking to a remote service
func NetworkFailure(code string, err error) *Error {
	return &Error{Kind: KindNetworkFailure, Code: code, Message: NetworkFailureErr.Message, Err: err}
}

// StoreFailure wraps a failure of the store holding credentials or profiles.
// The cause stays reachable through errors.Is and errors.As.
func StoreFailure(err error) *Error {
	return &Error{Kind: KindMalformedStore, Code: CodeStoreUnavailable, Message: "saved accounts are unavailable, please try again", Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) ErrorKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}

// UserMessage turns any error into a single line fit for a notification
func UserMessage(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	return "something went wrong, please try again"
}
