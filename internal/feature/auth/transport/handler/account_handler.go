package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"sample_app/internal/feature/auth/domain/entity"
	"sample_app/internal/feature/auth/transport/http/dto"
)

// AccountUsecase defines signup, activation and password reset.
type AccountUsecase interface {
	Signup(ctx context.Context, name, email, password string) (*entity.User, error)
	ActivateByEmail(ctx context.Context, email, token string) (*entity.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CheckPasswordReset(ctx context.Context, email, token string) (*entity.User, error)
	ResetPasswordByEmail(ctx context.Context, email, token, newPassword string) (*entity.User, error)
}

// AccountHandler handles the account lifecycle endpoints.
type AccountHandler struct {
	accounts AccountUsecase
	sessions SessionUsecase
}

func NewAccountHandler(accounts AccountUsecase, sessions SessionUsecase) *AccountHandler {
	return &AccountHandler{accounts: accounts, sessions: sessions}
}

// Signup handles POST /signup. The new account must be activated before it can log in.
func (h *AccountHandler) Signup(c *gin.Context) {
	var body dto.SignupReq
	if err := c.ShouldBindJSON(&body); err != nil {
		slog.Warn("signup validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		slog.Warn("signup failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return
	}
	slog.Info("user signup successful", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{
		"user":    dto.NewUserRes(user),
		"message": "please check your email to activate your account",
	})
}

// Activate handles GET /account_activations/:token/edit?email=.
// A valid link activates the account and logs the user in.
func (h *AccountHandler) Activate(c *gin.Context) {
	req, ok := requestOrAbort(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.accounts.ActivateByEmail(ctx, c.Query("email"), c.Param("token"))
	if err != nil {
		slog.Warn("account activation failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "invalid activation link")
		return
	}
	redirectTo, err := h.sessions.SignIn(ctx, req, user, false, defaultRedirect)
	if err != nil {
		slog.Error("activation could not start session", "error", err, "user_id", user.ID)
		writeError(c, err, "")
		return
	}
	if !commitSession(c) {
		return
	}
	slog.Info("account activated", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, dto.SessionRes{User: dto.NewUserRes(user), RedirectTo: redirectTo})
}

// CreatePasswordReset handles POST /password_resets. The response is the
// same whether or not the email belongs to an account.
func (h *AccountHandler) CreatePasswordReset(c *gin.Context) {
	var body dto.PasswordResetReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), body.Email); err != nil {
		slog.Error("password reset request failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "email sent with password reset instructions"})
}

// EditPasswordReset handles GET /password_resets/:token/edit?email=, the link
// sent by email. It checks the link without using it up and tells the client
// where to submit the new password.
func (h *AccountHandler) EditPasswordReset(c *gin.Context) {
	token := c.Param("token")
	user, err := h.accounts.CheckPasswordReset(c.Request.Context(), c.Query("email"), token)
	if err != nil {
		slog.Warn("password reset link rejected", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "invalid password reset link")
		return
	}
	c.JSON(http.StatusOK, dto.PasswordResetFormRes{
		Email:  user.Email,
		Method: http.MethodPatch,
		Action: "/password_resets/" + url.PathEscape(token),
	})
}

// UpdatePassword handles PATCH /password_resets/:token.
// A successful reset logs the user in on a fresh session.
func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	req, ok := requestOrAbort(c)
	if !ok {
		return
	}
	var body dto.PasswordUpdateReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.accounts.ResetPasswordByEmail(ctx, body.Email, c.Param("token"), body.Password)
	if err != nil {
		slog.Warn("password reset failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "invalid password reset link")
		return
	}
	redirectTo, err := h.sessions.SignIn(ctx, req, user, false, defaultRedirect)
	if err != nil {
		slog.Error("password reset could not start session", "error", err, "user_id", user.ID)
		writeError(c, err, "")
		return
	}
	if !commitSession(c) {
		return
	}
	slog.Info("password has been reset", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, dto.SessionRes{User: dto.NewUserRes(user), RedirectTo: redirectTo})
}
