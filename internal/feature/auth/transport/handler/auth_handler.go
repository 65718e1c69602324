// Package handler provides HTTP handlers for the auth feature.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sample_app/internal/feature/auth/domain"
	"sample_app/internal/feature/auth/domain/entity"
	"sample_app/internal/feature/auth/transport/http/dto"
	"sample_app/internal/feature/auth/usecase"
	"sample_app/internal/platform/session"
)

// ContextKeyUser holds the *entity.User set by RequireLogin.
const ContextKeyUser = "auth.user"

// defaultRedirect is where a user lands after login when no location was stored.
const defaultRedirect = "/me"

// SessionUsecase defines the login state operations used by the handlers.
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type SessionUsecase interface {
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	SignIn(ctx context.Context, req *usecase.Request, user *entity.User, rememberMe bool, fallback string) (string, error)
	CurrentUser(ctx context.Context, req *usecase.Request) (*entity.User, error)
	LogOut(ctx context.Context, req *usecase.Request) error
	RevokeSessions(ctx context.Context, user *entity.User) error
	StoreLocation(req *usecase.Request)
}

// AuthHandler handles login, logout and the current user.
type AuthHandler struct {
	sessions SessionUsecase
}

// NewAuthHandler creates a new instance of AuthHandler.
func NewAuthHandler(sessions SessionUsecase) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Login handles POST /login.
// - 400 when the body cannot be bound
// - 401 for any wrong email/password combination
// - 403 when the account has not been activated yet
// - 200 with the user and the page to go to next
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := requestOrAbort(c)
	if !ok {
		return
	}
	var body dto.LoginReq
	if err := c.ShouldBindJSON(&body); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.sessions.Authenticate(ctx, body.Email, body.Password)
	if err != nil {
		// The cause is logged but never returned, so accounts cannot be enumerated.
		slog.Warn("login failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "invalid email/password combination")
		return
	}

	redirectTo, err := h.sessions.SignIn(ctx, req, user, body.RememberMe, defaultRedirect)
	if err != nil {
		slog.Error("login could not start session", "error", err, "user_id", user.ID, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return
	}
	if !commitSession(c) {
		return
	}
	slog.Info("user login successful", "user_id", user.ID, "remember_me", body.RememberMe, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, dto.SessionRes{User: dto.NewUserRes(user), RedirectTo: redirectTo})
}

// Logout handles DELETE /logout. It succeeds for anonymous requests too.
func (h *AuthHandler) Logout(c *gin.Context) {
	req, ok := requestOrAbort(c)
	if !ok {
		return
	}
	if err := h.sessions.LogOut(c.Request.Context(), req); err != nil {
		// Cookies and session are cleared regardless; only the digest write failed.
		slog.Error("logout failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return
	}
	if !commitSession(c) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /me. It must run behind RequireLogin.
func (h *AuthHandler) Me(c *gin.Context) {
	user := c.MustGet(ContextKeyUser).(*entity.User)
	c.JSON(http.StatusOK, dto.NewUserRes(user))
}

// RevokeSessions handles DELETE /sessions: every device of the current user
// is logged out, this one included. It must run behind RequireLogin.
func (h *AuthHandler) RevokeSessions(c *gin.Context) {
	req, ok := requestOrAbort(c)
	if !ok {
		return
	}
	user := c.MustGet(ContextKeyUser).(*entity.User)
	ctx := c.Request.Context()

	if err := h.sessions.RevokeSessions(ctx, user); err != nil {
		slog.Error("revoke sessions failed", "error", err, "user_id", user.ID, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return
	}
	if err := h.sessions.LogOut(ctx, req); err != nil {
		slog.Warn("logout after revoke failed", "error", err, "user_id", user.ID)
	}
	slog.Info("sessions revoked", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.Status(http.StatusNoContent)
}

// RequireLogin rejects anonymous requests with 401 after storing the
// requested URL, so that the next login returns there.
func (h *AuthHandler) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := requestOrAbort(c)
		if !ok {
			return
		}
		user, err := h.sessions.CurrentUser(c.Request.Context(), req)
		if err != nil {
			slog.Error("current user lookup failed", "error", err, "remote_addr", c.ClientIP())
			writeError(c, err, "")
			c.Abort()
			return
		}
		if user == nil {
			h.sessions.StoreLocation(req)
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "please log in"})
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// requestOrAbort returns the request state attached by the session middleware.
func requestOrAbort(c *gin.Context) (*usecase.Request, bool) {
	req, ok := session.RequestFrom(c)
	if !ok {
		slog.Error("session middleware not installed", "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return req, true
}

// commitSession stores the session before the response goes out, so a
// client is never handed a session cookie the server failed to keep.
func commitSession(c *gin.Context) bool {
	if err := session.Persist(c); err != nil {
		slog.Error("failed to save session", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err, "")
		return false
	}
	return true
}

// writeError maps usecase errors to responses. authMessage replaces the
// generic text for authentication failures.
func writeError(c *gin.Context, err error, authMessage string) {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "service temporarily unavailable"})
	case errors.Is(err, domain.ErrExpiredToken):
		c.JSON(http.StatusGone, dto.ErrorResponse{Error: domain.ErrExpiredToken.Error()})
	case errors.Is(err, domain.ErrAccountNotActivated):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "account not activated. check your email for the activation link"})
	case errors.Is(err, domain.ErrAuthenticationFailure):
		if authMessage == "" {
			authMessage = "not authenticated"
		}
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: authMessage})
	case errors.Is(err, domain.ErrInvalidUser), errors.Is(err, domain.ErrInvalidPassword):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "email has already been taken"})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
