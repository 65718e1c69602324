// Package usecase implements the business logic for the auth feature.
package usecase

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"sample_app/internal/feature/auth/domain"
)

var (
	// ErrUserNotFound is returned when a user cannot be found by email or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailAlreadyExists is returned when attempting to create a user with an email that already exists.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrSessionNotFound is returned when a server-side session cannot be found by ID.
	ErrSessionNotFound = errors.New("session not found")
)

// storeFailure wraps a credential store fault so that callers can match it
// with errors.Is(err, domain.ErrStoreUnavailable) while keeping the cause.
func storeFailure(operation string, err error) error {
	return oops.Code("AUTH_STORE_UNAVAILABLE").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
}
