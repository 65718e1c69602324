package usecase

import (
	"context"

	"sample_app/internal/feature/auth/domain/entity"
)

// UserRepository abstracts the credential store.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type UserRepository interface {
	// Create persists a new user to the storage.
	// It returns ErrEmailAlreadyExists if a user with the same email already exists.
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail retrieves a user matching the specified (normalized) email address.
	// It returns ErrUserNotFound if the user does not exist.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID retrieves a user matching the specified ID.
	// It returns ErrUserNotFound if the user does not exist.
	FindByID(ctx context.Context, id uint) (*entity.User, error)

	// UpdateColumns writes the given columns of a single user row.
	// It returns ErrUserNotFound if no row was updated.
	UpdateColumns(ctx context.Context, id uint, cols entity.Columns) error
}

// Hasher hashes secrets and verifies candidates against stored digests.
type Hasher interface {
	Digest(secret string) (string, error)
	// Verify must return false for an empty digest.
	Verify(digest, candidate string) bool
}

// TokenGenerator mints random URL-safe tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// Mailer delivers account emails. Delivery is fire-and-forget from the usecase's point of view.
type Mailer interface {
	SendActivation(ctx context.Context, user *entity.User, token string) error
	SendPasswordReset(ctx context.Context, user *entity.User, token string) error
}

// Recorder counts authentication events for monitoring.
type Recorder interface {
	Inc(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Inc(string, string) {}
