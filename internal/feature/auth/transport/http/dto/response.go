package dto

import (
	"time"

	"sample_app/internal/feature/auth/domain/entity"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// UserRes is the public view of a user. Digests never leave the server.
type UserRes struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Activated   bool       `json:"activated"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewUserRes(u *entity.User) UserRes {
	return UserRes{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Activated:   u.Activated,
		ActivatedAt: u.ActivatedAt,
		CreatedAt:   u.CreatedAt,
	}
}

// SessionRes is returned after a successful login, activation or password reset.
type SessionRes struct {
	User UserRes `json:"user"`
	// RedirectTo is the page the user asked for before logging in, or their profile.
	RedirectTo string `json:"redirect_to"`
}

// PasswordResetFormRes describes where a valid reset link submits the new password.
type PasswordResetFormRes struct {
	Email  string `json:"email"`
	Method string `json:"method"`
	Action string `json:"action"`
}
