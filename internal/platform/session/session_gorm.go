package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sample_app/internal/feature/auth/usecase"
)

// SessionModel is the GORM model for the sessions table.
type SessionModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Data      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}

// TableName returns the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}

// SessionGorm implements Store on the relational database.
// It is used when Redis is not configured.
type SessionGorm struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*SessionGorm)(nil)

// NewSessionGorm creates a new instance of SessionGorm.
func NewSessionGorm(db *gorm.DB) *SessionGorm {
	return &SessionGorm{db: db, now: time.Now}
}

// Save upserts the session row.
func (r *SessionGorm) Save(ctx context.Context, id string, data *Data) error {
	values := data.Values
	if values == nil {
		values = map[string]string{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	model := &SessionModel{
		ID:        id,
		Data:      string(payload),
		CreatedAt: data.CreatedAt,
		ExpiresAt: data.ExpiresAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at", "expires_at"}),
		}).
		Create(model).Error
}

// Load retrieves an unexpired session by its ID.
func (r *SessionGorm) Load(ctx context.Context, id string) (*Data, error) {
	var model SessionModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, r.now()).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	values := make(map[string]string)
	if err := json.Unmarshal([]byte(model.Data), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &Data{
		Values:    values,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

// Delete removes a session row.
func (r *SessionGorm) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&SessionModel{}, "id = ?", id).Error
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (r *SessionGorm) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now()).
		Delete(&SessionModel{})
	return result.RowsAffected, result.Error
}
