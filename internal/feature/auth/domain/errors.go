// Package domain defines domain-level errors for the auth feature.
package domain

import "errors"

// Domain errors for authentication operations.
// These errors represent business logic failures and should be handled appropriately by upper layers.
var (
	// ErrAuthenticationFailure covers a wrong password, a mismatched session,
	// remember, activation or reset token, and an unknown user. Callers must not
	// be able to tell these cases apart.
	ErrAuthenticationFailure = errors.New("not authenticated")

	// ErrExpiredToken indicates that a password reset token is older than the reset window.
	// It is reported separately so the user can be asked to request a new link.
	ErrExpiredToken = errors.New("password reset has expired")

	// ErrStoreUnavailable indicates that the credential store could not be read or written.
	// It is never treated as anonymous access.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrAccountNotActivated is returned by a correct login on an account that was never activated.
	ErrAccountNotActivated = errors.New("account not activated")

	// ErrInvalidPassword indicates that a new password does not meet the password rules.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidUser indicates that signup data does not meet the user rules.
	ErrInvalidUser = errors.New("invalid user")
)
