package di

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"sample_app/internal/platform/config"
	"sample_app/internal/platform/db"
	"sample_app/internal/platform/mailer"
)

type testApp struct {
	app *App
	mr  *miniredis.Miniredis
	srv *httptest.Server
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	gdb, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: ":memory:"}, logger.Discard)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, gdb))

	cfg := config.Default()
	cfg.Auth.CookieSecret = "test-secret"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	if mutate != nil {
		mutate(cfg)
	}

	app, err := Wire(cfg, gdb, rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return &testApp{app: app, mr: mr, srv: srv}
}

// browser keeps cookies between requests like a real user agent.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, a *testApp) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: a.srv.URL, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body any) (int, map[string]any) {
	b.t.Helper()
	return b.doWithHeader(method, path, body, nil)
}

func (b *browser) doWithHeader(method, path string, body any, header http.Header) (int, map[string]any) {
	b.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(b.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, b.base+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func (b *browser) cookie(name string) *http.Cookie {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withCookies returns a new browser holding only the named cookies, as after a browser restart.
func (b *browser) withCookies(names ...string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(b.t, err)
	u, _ := url.Parse(b.base)
	var kept []*http.Cookie
	for _, name := range names {
		if c := b.cookie(name); c != nil {
			kept = append(kept, &http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	jar.SetCookies(u, kept)
	return &browser{t: b.t, base: b.base, client: &http.Client{Jar: jar}}
}

// lastMailLink returns the path of the link in the newest queued email.
func (a *testApp) lastMailLink(t *testing.T, kind string) string {
	t.Helper()
	raw, err := a.mr.Lpop("mail:outbox")
	require.NoError(t, err)
	var msg mailer.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, kind, msg.Kind)
	u, err := url.Parse(msg.Link)
	require.NoError(t, err)
	return u.RequestURI()
}

func signupAndActivate(t *testing.T, a *testApp, email, password string) {
	t.Helper()
	b := newBrowser(t, a)
	status, _ := b.do(http.MethodPost, "/signup", map[string]any{
		"name": "Example User", "email": email,
		"password": password, "password_confirmation": password,
	})
	require.Equal(t, http.StatusCreated, status)
	status, _ = b.do(http.MethodGet, a.lastMailLink(t, mailer.KindActivation), nil)
	require.Equal(t, http.StatusOK, status)
}

func login(t *testing.T, b *browser, email, password string, remember bool) {
	t.Helper()
	status, body := b.do(http.MethodPost, "/login", map[string]any{
		"email": email, "password": password, "remember_me": remember,
	})
	require.Equal(t, http.StatusOK, status, "login failed: %v", body)
}

func TestApp_SignupActivationAndLogin(t *testing.T) {
	a := newTestApp(t, nil)
	b := newBrowser(t, a)

	status, body := b.do(http.MethodPost, "/signup", map[string]any{
		"name": "Example User", "email": "User@Example.com",
		"password": "foobar", "password_confirmation": "foobar",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "user@example.com", body["user"].(map[string]any)["email"])
	activation := a.lastMailLink(t, mailer.KindActivation)

	status, body = b.do(http.MethodPost, "/login", map[string]any{"email": "user@example.com", "password": "foobar"})
	assert.Equal(t, http.StatusForbidden, status, "unactivated accounts cannot log in: %v", body)

	status, _ = b.do(http.MethodGet, "/account_activations/wrong-token/edit?email=user%40example.com", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = b.do(http.MethodGet, activation, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["user"].(map[string]any)["activated"])

	status, body = b.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, status, "activation logs the user in")
	assert.Equal(t, "user@example.com", body["email"])

	status, _ = b.do(http.MethodGet, activation, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "activation links work once")
}

func TestApp_DuplicateSignup(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")

	status, _ := newBrowser(t, a).do(http.MethodPost, "/signup", map[string]any{
		"name": "Other", "email": "USER@example.com",
		"password": "foobar", "password_confirmation": "foobar",
	})

	assert.Equal(t, http.StatusConflict, status)
}

func TestApp_LoginRotatesSessionAndLogout(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)

	status, _ := b.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	before := b.cookie("_sample_app_session")
	require.NotNil(t, before, "anonymous GET stores the location in a session")

	login(t, b, "user@example.com", "foobar", false)
	after := b.cookie("_sample_app_session")
	require.NotNil(t, after)
	assert.NotEqual(t, before.Value, after.Value, "login must issue a new session id")
	assert.Nil(t, b.cookie("remember_token"))

	status, _ = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = b.do(http.MethodDelete, "/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = b.do(http.MethodDelete, "/logout", nil)
	assert.Equal(t, http.StatusNoContent, status, "logout twice is harmless")

	status, _ = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_WrongPassword(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)

	wrongPassword, body1 := b.do(http.MethodPost, "/login", map[string]any{"email": "user@example.com", "password": "nope"})
	unknownEmail, body2 := b.do(http.MethodPost, "/login", map[string]any{"email": "nobody@example.com", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail)
	assert.Equal(t, body1, body2, "responses must not reveal which part was wrong")
}

func TestApp_FriendlyForwarding(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)

	status, _ := b.do(http.MethodGet, "/me?tab=settings", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body := b.do(http.MethodPost, "/login", map[string]any{"email": "user@example.com", "password": "foobar"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/me?tab=settings", body["redirect_to"])

	status, _ = b.do(http.MethodDelete, "/logout", nil)
	require.Equal(t, http.StatusNoContent, status)
	status, body = b.do(http.MethodPost, "/login", map[string]any{"email": "user@example.com", "password": "foobar"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/me", body["redirect_to"], "the stored location is used once")
}

func TestApp_RememberMe(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)
	login(t, b, "user@example.com", "foobar", true)
	require.NotNil(t, b.cookie("user_id"))
	require.NotNil(t, b.cookie("remember_token"))
	assert.NotEqual(t, "1", b.cookie("user_id").Value, "user id cookie is signed")

	// Browser restart: the session cookie is gone, the permanent ones remain.
	restarted := b.withCookies("user_id", "remember_token")
	status, body := restarted.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user@example.com", body["email"])

	tampered := restarted.withCookies("remember_token")
	tampered.client.Jar.SetCookies(mustURL(t, a.srv.URL), []*http.Cookie{{Name: "user_id", Value: "1"}})
	status, _ = tampered.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "an unsigned user id cookie is ignored")

	status, _ = b.do(http.MethodDelete, "/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	stale := newBrowser(t, a)
	stale.client.Jar.SetCookies(mustURL(t, a.srv.URL), []*http.Cookie{
		{Name: "user_id", Value: restarted.cookie("user_id").Value},
		{Name: "remember_token", Value: restarted.cookie("remember_token").Value},
	})
	status, _ = stale.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "logout invalidates the remember token")
}

func TestApp_RevokeSessions(t *testing.T) {
	// Independent tokens let both devices stay logged in until the revoke.
	a := newTestApp(t, func(cfg *config.Config) { cfg.Auth.SessionTokenMode = "independent" })
	signupAndActivate(t, a, "user@example.com", "foobar")
	laptop, phone := newBrowser(t, a), newBrowser(t, a)
	login(t, laptop, "user@example.com", "foobar", false)
	login(t, phone, "user@example.com", "foobar", true)
	restartedPhone := phone.withCookies("user_id", "remember_token")

	status, _ := laptop.do(http.MethodDelete, "/sessions", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = phone.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = restartedPhone.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "remember tokens are revoked too")
	status, _ = laptop.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_SharedTokenLoginEndsOtherSessions(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	laptop, phone := newBrowser(t, a), newBrowser(t, a)
	login(t, laptop, "user@example.com", "foobar", false)
	login(t, phone, "user@example.com", "foobar", false)

	status, _ := laptop.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "a new login replaces the shared session token")
	status, _ = phone.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestApp_IndependentSessionTokens(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.Auth.SessionTokenMode = "independent" })
	signupAndActivate(t, a, "user@example.com", "foobar")
	laptop, phone := newBrowser(t, a), newBrowser(t, a)
	login(t, laptop, "user@example.com", "foobar", false)
	login(t, phone, "user@example.com", "foobar", false)

	status, _ := laptop.do(http.MethodDelete, "/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = phone.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, status, "logging out one device keeps the others")
}

func TestApp_PasswordReset(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)

	status, _ := b.do(http.MethodPost, "/password_resets", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, status)
	assert.False(t, a.mr.Exists("mail:outbox"), "unknown emails queue nothing")

	status, _ = b.do(http.MethodPost, "/password_resets", map[string]any{"email": "user@example.com"})
	require.Equal(t, http.StatusAccepted, status)
	link := a.lastMailLink(t, mailer.KindPasswordReset)

	// The emailed link opens the form and names where to submit it.
	status, form := b.do(http.MethodGet, link, nil)
	require.Equal(t, http.StatusOK, status, "%v", form)
	assert.Equal(t, "user@example.com", form["email"])
	require.Equal(t, http.MethodPatch, form["method"])
	resetPath := form["action"].(string)

	status, _ = b.do(http.MethodGet, strings.Replace(link, "user%40example.com", "other%40example.com", 1), nil)
	assert.Equal(t, http.StatusUnauthorized, status, "the link is bound to its email")

	status, _ = b.do(http.MethodPatch, resetPath, map[string]any{
		"email": "user@example.com", "password": "", "password_confirmation": "",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = b.do(http.MethodPatch, resetPath, map[string]any{
		"email": "user@example.com", "password": "abc", "password_confirmation": "abc",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body := b.do(http.MethodPatch, resetPath, map[string]any{
		"email": "user@example.com", "password": "newpassword", "password_confirmation": "newpassword",
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, _ = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, status, "a reset logs the user in")

	status, _ = b.do(http.MethodPatch, resetPath, map[string]any{
		"email": "user@example.com", "password": "another1", "password_confirmation": "another1",
	})
	assert.Equal(t, http.StatusUnauthorized, status, "reset links work once")
	status, _ = b.do(http.MethodGet, link, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "a used link no longer opens the form")

	login(t, newBrowser(t, a), "user@example.com", "newpassword", false)
}

func TestApp_SessionStoreDown(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)
	login(t, b, "user@example.com", "foobar", false)

	a.mr.Close()

	status, _ := b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestApp_LoginFailsWhenSessionCannotBeSaved(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)
	creds := map[string]any{"email": "user@example.com", "password": "foobar"}

	a.mr.SetError("ERR server unavailable")
	status, body := b.do(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusServiceUnavailable, status, "%v", body)
	assert.Nil(t, b.cookie("_sample_app_session"), "no cookie for a session that was never stored")

	a.mr.SetError("")
	status, _ = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	login(t, b, "user@example.com", "foobar", false)
	status, _ = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestApp_OperationalEndpoints(t *testing.T) {
	a := newTestApp(t, nil)
	signupAndActivate(t, a, "user@example.com", "foobar")
	b := newBrowser(t, a)

	status, body := b.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Nil(t, b.cookie("_sample_app_session"), "health checks never start a session")

	resp, err := http.Get(a.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `sample_app_auth_events_total{event="signup",outcome="success"} 1`)
	assert.Contains(t, string(raw), `sample_app_auth_events_total{event="activation",outcome="success"} 1`)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestApp_LoginThrottle(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.RateLimit.Limit = 2 })
	b := newBrowser(t, a)
	creds := map[string]any{"email": "nobody@example.com", "password": "wrong"}

	for i := 0; i < 2; i++ {
		status, _ := b.do(http.MethodPost, "/login", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := b.do(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too many requests, try again later", body["error"])

	status, _ = b.do(http.MethodPost, "/password_resets", map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, status, "each endpoint has its own budget")

	a.mr.FastForward(time.Minute)
	status, _ = b.do(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_LoginThrottleIgnoresForwardedFor(t *testing.T) {
	creds := map[string]any{"email": "nobody@example.com", "password": "wrong"}
	forwardedFor := func(i int) http.Header {
		return http.Header{"X-Forwarded-For": {fmt.Sprintf("203.0.113.%d", i+1)}}
	}

	t.Run("untrusted peer cannot pick its address", func(t *testing.T) {
		a := newTestApp(t, func(cfg *config.Config) { cfg.RateLimit.Limit = 2 })
		b := newBrowser(t, a)

		var statuses []int
		for i := 0; i < 4; i++ {
			status, _ := b.doWithHeader(http.MethodPost, "/login", creds, forwardedFor(i))
			statuses = append(statuses, status)
		}
		assert.Equal(t, []int{
			http.StatusUnauthorized, http.StatusUnauthorized,
			http.StatusTooManyRequests, http.StatusTooManyRequests,
		}, statuses)
	})

	t.Run("trusted proxy forwards the client address", func(t *testing.T) {
		a := newTestApp(t, func(cfg *config.Config) {
			cfg.RateLimit.Limit = 2
			cfg.HTTP.TrustedProxies = []string{"127.0.0.1", "::1"}
		})
		b := newBrowser(t, a)

		for i := 0; i < 4; i++ {
			status, _ := b.doWithHeader(http.MethodPost, "/login", creds, forwardedFor(i))
			assert.Equal(t, http.StatusUnauthorized, status, "each forwarded client has its own budget")
		}
	})
}

func TestWire_InvalidTrustedProxy(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: ":memory:"}, logger.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(gdb) })

	cfg := config.Default()
	cfg.Auth.CookieSecret = "test-secret"
	cfg.HTTP.TrustedProxies = []string{"not-an-address"}

	_, err = Wire(cfg, gdb, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "CONFIG_INVALID", oopsErr.Code())
}
