// Package adapters provides repository implementations for the auth feature.
package adapters

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"sample_app/internal/feature/auth/domain/entity"
	"sample_app/internal/feature/auth/usecase"
)

// UserGorm is the gorm implementation of the UserRepository interface.
// It works against both the postgres and the sqlite driver.
type UserGorm struct {
	db *gorm.DB
}

// Compile-time check to ensure UserGorm implements UserRepository.
var _ usecase.UserRepository = (*UserGorm)(nil)

// NewUserGorm creates a new instance of UserGorm.
func NewUserGorm(db *gorm.DB) *UserGorm {
	return &UserGorm{db: db}
}

// Create persists a new user.
// It returns usecase.ErrEmailAlreadyExists when the email is already taken.
func (r *UserGorm) Create(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("user is nil")
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return usecase.ErrEmailAlreadyExists
		}
		return err
	}
	return nil
}

// FindByEmail retrieves a user by (normalized) email.
// It returns usecase.ErrUserNotFound when no user matches.
func (r *UserGorm) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByID retrieves a user by ID.
// It returns usecase.ErrUserNotFound when no user matches.
func (r *UserGorm) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateColumns writes the given credential columns of one user in a single
// statement. A nil value sets the column to NULL.
func (r *UserGorm) UpdateColumns(ctx context.Context, id uint, cols entity.Columns) error {
	if len(cols) == 0 {
		return nil
	}
	values := make(map[string]any, len(cols))
	for col, v := range cols {
		values[string(col)] = v
	}

	result := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usecase.ErrUserNotFound
	}
	return nil
}

// isUniqueViolation recognises duplicate keys from postgres directly and from
// any driver whose errors gorm translates.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
