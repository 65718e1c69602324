package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"sample_app/internal/feature/auth/domain"
	"sample_app/internal/feature/auth/domain/entity"
)

const (
	// minPasswordLength defines the minimum number of characters in a password.
	minPasswordLength = 6
	// maxPasswordBytes is bcrypt's input limit.
	maxPasswordBytes = 72

	maxNameLength  = 50
	maxEmailLength = 255

	// DefaultResetTokenTTL is how long a password reset link stays valid.
	DefaultResetTokenTTL = 2 * time.Hour

	eventSignup     = "signup"
	eventActivation = "activation"
	eventReset      = "password_reset"
)

var validEmail = regexp.MustCompile(`(?i)^[\w+\-.]+@[a-z\d\-]+(\.[a-z\d\-]+)*\.[a-z]+$`)

// AccountUsecase implements signup, account activation and password reset.
type AccountUsecase struct {
	users    UserRepository
	hasher   Hasher
	tokens   TokenGenerator
	mailer   Mailer
	resetTTL time.Duration
	recorder Recorder
	now      func() time.Time
}

// NewAccountUsecase creates an AccountUsecase. A non-positive resetTTL uses
// DefaultResetTokenTTL and a nil recorder disables event counting.
func NewAccountUsecase(users UserRepository, hasher Hasher, tokens TokenGenerator, mailer Mailer, resetTTL time.Duration, recorder Recorder) *AccountUsecase {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AccountUsecase{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		resetTTL: resetTTL,
		recorder: recorder,
		now:      time.Now,
	}
}

func validateUser(name, email string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name can't be blank", domain.ErrInvalidUser)
	case utf8.RuneCountInString(name) > maxNameLength:
		return fmt.Errorf("%w: name is too long (maximum is %d characters)", domain.ErrInvalidUser, maxNameLength)
	case email == "":
		return fmt.Errorf("%w: email can't be blank", domain.ErrInvalidUser)
	case len(email) > maxEmailLength:
		return fmt.Errorf("%w: email is too long (maximum is %d characters)", domain.ErrInvalidUser, maxEmailLength)
	case !validEmail.MatchString(email):
		return fmt.Errorf("%w: email is invalid", domain.ErrInvalidUser)
	}
	return nil
}

// validatePassword checks that a password meets the security requirements.
func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password can't be blank", domain.ErrInvalidPassword)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", domain.ErrInvalidPassword, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes long", domain.ErrInvalidPassword, maxPasswordBytes)
	}
	return nil
}

// Signup registers a new, not yet activated user and sends the activation email.
func (u *AccountUsecase) Signup(ctx context.Context, name, email, password string) (*entity.User, error) {
	name = strings.TrimSpace(name)
	email = entity.NormalizeEmail(email)
	if err := validateUser(name, email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordDigest, err := u.hasher.Digest(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	activationToken, activationDigest, err := u.mint()
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:             name,
		Email:            email,
		PasswordDigest:   passwordDigest,
		ActivationDigest: &activationDigest,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			u.recorder.Inc(eventSignup, "duplicate_email")
			return nil, err
		}
		return nil, storeFailure("create user", err)
	}
	u.recorder.Inc(eventSignup, "success")

	if err := u.mailer.SendActivation(ctx, user, activationToken); err != nil {
		slog.WarnContext(ctx, "activation email dispatch failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Activate marks the account as activated when token matches the activation
// digest. An already activated account is rejected without side effects.
func (u *AccountUsecase) Activate(ctx context.Context, user *entity.User, token string) error {
	if user == nil || user.Activated || !authenticated(u.hasher, user, entity.TokenActivation, token) {
		u.recorder.Inc(eventActivation, "invalid")
		return domain.ErrAuthenticationFailure
	}

	cols := entity.Columns{
		entity.ColumnActivated:   true,
		entity.ColumnActivatedAt: u.now(),
	}
	if err := u.users.UpdateColumns(ctx, user.ID, cols); err != nil {
		return storeFailure("activate", err)
	}
	user.Set(cols)
	u.recorder.Inc(eventActivation, "success")
	return nil
}

// ActivateByEmail looks the user up by email and activates the account.
func (u *AccountUsecase) ActivateByEmail(ctx context.Context, email, token string) (*entity.User, error) {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := u.Activate(ctx, user, token); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateResetDigest mints a reset token, stores its digest and the send time,
// and returns the plaintext token.
func (u *AccountUsecase) CreateResetDigest(ctx context.Context, user *entity.User) (string, error) {
	if user == nil {
		return "", domain.ErrAuthenticationFailure
	}
	token, digest, err := u.mint()
	if err != nil {
		return "", err
	}
	cols := entity.Columns{
		entity.ColumnResetDigest: digest,
		entity.ColumnResetSentAt: u.now(),
	}
	if err := u.users.UpdateColumns(ctx, user.ID, cols); err != nil {
		return "", storeFailure("create reset digest", err)
	}
	user.Set(cols)
	return token, nil
}

// RequestPasswordReset sends a reset email to the owner of email.
// Unknown emails succeed silently so that accounts cannot be enumerated.
func (u *AccountUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailure) {
			u.recorder.Inc(eventReset, "unknown_email")
			return nil
		}
		return err
	}

	token, err := u.CreateResetDigest(ctx, user)
	if err != nil {
		return err
	}
	u.recorder.Inc(eventReset, "requested")

	if err := u.mailer.SendPasswordReset(ctx, user, token); err != nil {
		slog.WarnContext(ctx, "password reset email dispatch failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// PasswordResetExpired reports whether the reset was sent longer ago than the
// reset window. A nil user or one with no pending reset counts as expired.
func (u *AccountUsecase) PasswordResetExpired(user *entity.User) bool {
	if user == nil || user.ResetSentAt == nil {
		return true
	}
	return user.ResetSentAt.Before(u.now().Add(-u.resetTTL))
}

// ResetPassword replaces the password when token matches the pending reset.
// An expired reset yields domain.ErrExpiredToken, a wrong or consumed token
// domain.ErrAuthenticationFailure.
func (u *AccountUsecase) ResetPassword(ctx context.Context, user *entity.User, token, newPassword string) error {
	if err := u.checkReset(user, token); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordDigest, err := u.hasher.Digest(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	cols := entity.Columns{
		entity.ColumnPasswordDigest: passwordDigest,
		entity.ColumnResetDigest:    nil,
	}
	if err := u.users.UpdateColumns(ctx, user.ID, cols); err != nil {
		return storeFailure("reset password", err)
	}
	user.Set(cols)
	u.recorder.Inc(eventReset, "success")
	return nil
}

// ResetPasswordByEmail looks up an activated user by email and resets the password.
func (u *AccountUsecase) ResetPasswordByEmail(ctx context.Context, email, token, newPassword string) (*entity.User, error) {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Activated {
		return nil, domain.ErrAuthenticationFailure
	}
	if err := u.ResetPassword(ctx, user, token, newPassword); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckPasswordReset reports whether a reset link for email and token can
// still be used, without consuming it. It fails like ResetPasswordByEmail.
func (u *AccountUsecase) CheckPasswordReset(ctx context.Context, email, token string) (*entity.User, error) {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Activated {
		return nil, domain.ErrAuthenticationFailure
	}
	if err := u.checkReset(user, token); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *AccountUsecase) checkReset(user *entity.User, token string) error {
	if user == nil || user.ResetSentAt == nil {
		u.recorder.Inc(eventReset, "invalid")
		return domain.ErrAuthenticationFailure
	}
	if u.PasswordResetExpired(user) {
		u.recorder.Inc(eventReset, "expired")
		return domain.ErrExpiredToken
	}
	if !authenticated(u.hasher, user, entity.TokenReset, token) {
		u.recorder.Inc(eventReset, "invalid")
		return domain.ErrAuthenticationFailure
	}
	return nil
}

// mint returns a fresh token and its digest.
func (u *AccountUsecase) mint() (token, digest string, err error) {
	token, err = u.tokens.NewToken()
	if err != nil {
		return "", "", err
	}
	digest, err = u.hasher.Digest(token)
	if err != nil {
		return "", "", err
	}
	return token, digest, nil
}

// findByEmail maps a missing user to domain.ErrAuthenticationFailure.
func (u *AccountUsecase) findByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := u.users.FindByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, domain.ErrAuthenticationFailure
		}
		return nil, storeFailure("find user by email", err)
	}
	return user, nil
}
