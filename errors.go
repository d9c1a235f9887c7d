package authbase

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel domain errors.  Boundary layers decide which of these are safe
// to surface verbatim and which collapse into a uniform response.
var (
	// ErrAccountExists is returned for duplicate creates, including the
	// race where two signups for the same email pass the initial lookup
	// and the store's uniqueness constraint rejects the loser.
	ErrAccountExists = errors.New("account with this email already exists")

	// ErrAccountNotFound is returned by store lookups that find nothing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTokenInvalid covers wrong, expired and already-consumed tokens.
	// Callers never learn which.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// Credential sign-in failures.  All but ErrEmailNotVerified are
	// enumeration-sensitive and map to the same response at the boundary.
	ErrNoSuchAccount      = errors.New("no account with this email")
	ErrOAuthOnlyAccount   = errors.New("account has no password set")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnverifiedAccountConflict is the OAuth security gate: an account
	// with this email exists but its email was never verified, so linking
	// is refused until the mailbox owner verifies it.
	ErrUnverifiedAccountConflict = errors.New("an account with this email exists but is not verified; verify your email first or use a different sign-in method")
)

// Error codes used in JSON error responses.
const (
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidEmail  = "invalid_email"
	ErrCodeInvalidName   = "invalid_name"
	ErrCodeWeakPassword  = "weak_password"
	ErrCodeEmailExists   = "email_exists"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeNotVerified   = "email_not_verified"
	ErrCodeInvalidToken  = "invalid_token"
	ErrCodeOAuthConflict = "unverified_account_conflict"
	ErrCodeInternal      = "internal_error"
)

// AuthError is a user-facing error with a stable code and the form field it
// relates to.  Validation errors are safe to show verbatim.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// StatusCode maps an error code to an HTTP status.
func (e *AuthError) StatusCode() int {
	switch e.Code {
	case ErrCodeInvalidCreds, ErrCodeNotVerified:
		return http.StatusUnauthorized
	case ErrCodeOAuthConflict:
		return http.StatusConflict
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// AuthErrorHandler lets applications override how auth errors are rendered
// (e.g. redirect back to a form).  Returning true means the error was
// handled; false falls back to the default JSON response.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// StoreError wraps a transient infrastructure failure (store unreachable,
// connection acquisition timeout).  These are logged with detail and
// returned to callers as an opaque 500; they are retryable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError tags err as a transient infrastructure failure.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsTransient reports whether err is a transient infrastructure failure as
// opposed to a domain error.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
