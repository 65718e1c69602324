package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"sample_app/internal/feature/auth/domain"
	"sample_app/internal/feature/auth/usecase"
	"sample_app/internal/platform/digest"
)

// ContextKeyRequest is the gin context key under which the *usecase.Request is stored.
const ContextKeyRequest = "auth.request"

const contextKeyCommit = "session.commit"

// Config controls the session cookie and server-side lifetime.
type Config struct {
	CookieName string
	// TTL is how long an idle session is kept on the server.
	TTL time.Duration
	// Secure marks every cookie as HTTPS only.
	Secure bool
}

// Manager loads the session before a request and writes it back afterwards.
type Manager struct {
	store  Store
	signer Signer
	cfg    Config
	newID  func() (string, error)
	now    func() time.Time
}

// NewManager creates a session Manager.
func NewManager(store Store, signer Signer, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "_sample_app_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		signer: signer,
		cfg:    cfg,
		newID:  digest.NewToken,
		now:    time.Now,
	}
}

// Middleware attaches a *usecase.Request to the gin context.
// A session store failure aborts the request with 503.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		jar, err := m.open(ctx, c)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load session", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
			return
		}

		cookies := NewCookieJar(c, m.signer, m.cfg.Secure)
		req := usecase.NewRequest(jar, cookies, c.Request.Method, c.Request.URL.RequestURI())
		c.Set(ContextKeyRequest, req)
		c.Set(contextKeyCommit, func() error { return m.commit(ctx, c, jar) })

		c.Next()

		// Handlers that must not answer before the session is stored call Persist.
		// Anything left is written here, after the response.
		if err := m.persist(ctx, jar); err != nil {
			slog.WarnContext(ctx, "failed to persist session", "error", err)
		}
	}
}

// Persist writes the session of the current request to the store before the
// handler responds. Without the session middleware it does nothing.
// A failure matches domain.ErrStoreUnavailable, and a session cookie issued
// during this request is withdrawn so it does not point at a missing session.
func Persist(c *gin.Context) error {
	v, ok := c.Get(contextKeyCommit)
	if !ok {
		return nil
	}
	commit, ok := v.(func() error)
	if !ok {
		return nil
	}
	return commit()
}

func (m *Manager) commit(ctx context.Context, c *gin.Context, jar *Jar) error {
	err := m.persist(ctx, jar)
	if err == nil {
		return nil
	}
	if jar.id != "" && !jar.stored {
		m.issue(c, "")
		jar.id = ""
	}
	return oops.Code("AUTH_STORE_UNAVAILABLE").
		With("operation", "persist session").
		Wrap(fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
}

// RequestFrom returns the *usecase.Request attached by Middleware.
func RequestFrom(c *gin.Context) (*usecase.Request, bool) {
	v, ok := c.Get(ContextKeyRequest)
	if !ok {
		return nil, false
	}
	req, ok := v.(*usecase.Request)
	return req, ok
}

func (m *Manager) open(ctx context.Context, c *gin.Context) (*Jar, error) {
	issue := func(id string) { m.issue(c, id) }

	id, err := c.Cookie(m.cfg.CookieName)
	if err != nil || id == "" {
		return newJar(m.newID, issue), nil
	}

	data, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			return newJar(m.newID, issue), nil
		}
		return nil, err
	}
	if data.Expired(m.now()) {
		return newJar(m.newID, issue), nil
	}
	return loadedJar(id, data, m.newID, issue), nil
}

// persist writes the jar back. Untouched sessions are only re-saved once
// half of their lifetime has passed.
func (m *Manager) persist(ctx context.Context, jar *Jar) error {
	var errs []error
	var remaining []string
	for _, id := range jar.stale {
		if err := m.store.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			remaining = append(remaining, id)
		}
	}
	jar.stale = remaining

	now := m.now()
	switch {
	case jar.id == "":
	case jar.dirty && len(jar.values) == 0:
		if jar.stored {
			if err := m.store.Delete(ctx, jar.id); err != nil {
				errs = append(errs, err)
				break
			}
			jar.stored = false
		}
		jar.dirty = false
	case jar.dirty, jar.stored && jar.expiresAt.Sub(now) < m.cfg.TTL/2:
		createdAt := jar.createdAt
		if createdAt.IsZero() {
			createdAt = now
		}
		expiresAt := now.Add(m.cfg.TTL)
		if err := m.store.Save(ctx, jar.id, &Data{
			Values:    maps.Clone(jar.values),
			CreatedAt: createdAt,
			ExpiresAt: expiresAt,
		}); err != nil {
			errs = append(errs, err)
			break
		}
		jar.stored, jar.dirty = true, false
		jar.createdAt, jar.expiresAt = createdAt, expiresAt
	}
	return errors.Join(errs...)
}

func (m *Manager) issue(c *gin.Context, id string) {
	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if id == "" {
		cookie.MaxAge = -1
	}
	writeCookie(c, cookie)
}
