package router

import (
	"github.com/gin-gonic/gin"

	authhandler "sample_app/internal/feature/auth/transport/handler"
	platformhandler "sample_app/internal/platform/http/handler"
	"sample_app/internal/platform/metrics"
	"sample_app/internal/platform/session"
	"sample_app/internal/shared/ratelimiter"
)

// Deps are the handlers and middleware the router mounts.
type Deps struct {
	Auth     *authhandler.AuthHandler
	Account  *authhandler.AccountHandler
	Health   *platformhandler.Health
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	// Limiter throttles credential submissions. Nil disables throttling.
	Limiter ratelimiter.Limiter
	// TrustedProxies may set the client address through X-Forwarded-For.
	// With none, the client address is always the peer address.
	TrustedProxies []string
}

func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), d.Metrics.Middleware())

	// Operational endpoints carry no session.
	r.GET("/healthz", d.Health.Handle)
	r.HEAD("/healthz", d.Health.Handle)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	app := r.Group("/")
	app.Use(d.Sessions.Middleware())
	{
		app.POST("/signup", d.Account.Signup)
		app.POST("/login", throttle(d.Limiter, "login"), d.Auth.Login)
		app.DELETE("/logout", d.Auth.Logout)
		app.GET("/account_activations/:token/edit", d.Account.Activate)
		app.POST("/password_resets", throttle(d.Limiter, "password_reset"), d.Account.CreatePasswordReset)
		app.GET("/password_resets/:token/edit", d.Account.EditPasswordReset)
		app.PATCH("/password_resets/:token", d.Account.UpdatePassword)
	}

	// Routes below require a logged-in user; anonymous GETs remember where they were going.
	authed := app.Group("/")
	authed.Use(d.Auth.RequireLogin())
	{
		authed.GET("/me", d.Auth.Me)
		authed.DELETE("/sessions", d.Auth.RevokeSessions)
	}

	return r, nil
}

func throttle(l ratelimiter.Limiter, name string) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return ratelimiter.Middleware(l, name)
}
