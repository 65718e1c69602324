package session

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sample_app/internal/feature/auth/usecase"
)

// PermanentMaxAge is the lifetime of permanent cookies, 20 years in seconds.
const PermanentMaxAge = 20 * 365 * 24 * 60 * 60

// Signer signs and verifies cookie values.
type Signer interface {
	Sign(name, value string) (string, error)
	Verify(name, token string) (string, bool)
}

type cookieWrite struct {
	value   string
	signed  bool
	deleted bool
}

// CookieJar implements usecase.Cookies on top of a gin context.
// Values written during the request are visible to later reads in the same request.
type CookieJar struct {
	c       *gin.Context
	signer  Signer
	secure  bool
	written map[string]cookieWrite
}

var _ usecase.Cookies = (*CookieJar)(nil)

// NewCookieJar creates a CookieJar for the request held by c.
func NewCookieJar(c *gin.Context, signer Signer, secure bool) *CookieJar {
	return &CookieJar{
		c:       c,
		signer:  signer,
		secure:  secure,
		written: make(map[string]cookieWrite),
	}
}

// Get returns the raw value of a cookie.
func (j *CookieJar) Get(key string) (string, bool) {
	if w, ok := j.written[key]; ok {
		if w.deleted || w.signed {
			return "", false
		}
		return w.value, true
	}
	v, err := j.c.Cookie(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// GetSigned returns the value of a signed cookie. Tampered cookies are reported as absent.
func (j *CookieJar) GetSigned(key string) (string, bool) {
	if w, ok := j.written[key]; ok {
		if w.deleted || !w.signed {
			return "", false
		}
		return w.value, true
	}
	raw, err := j.c.Cookie(key)
	if err != nil || raw == "" {
		return "", false
	}
	return j.signer.Verify(key, raw)
}

func (j *CookieJar) Set(key, value string, opts usecase.CookieOptions) {
	raw := value
	if opts.Signed {
		signed, err := j.signer.Sign(key, value)
		if err != nil {
			slog.ErrorContext(j.c.Request.Context(), "failed to sign cookie", "cookie", key, "error", err)
			return
		}
		raw = signed
	}
	maxAge := 0
	if opts.Permanent {
		maxAge = PermanentMaxAge
	}
	writeCookie(j.c, &http.Cookie{
		Name:     key,
		Value:    raw,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	j.written[key] = cookieWrite{value: value, signed: opts.Signed}
}

func (j *CookieJar) Delete(key string) {
	writeCookie(j.c, &http.Cookie{
		Name:     key,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	j.written[key] = cookieWrite{deleted: true}
}

// writeCookie sets cookie on the response, replacing any earlier
// Set-Cookie header for the same name.
func writeCookie(c *gin.Context, cookie *http.Cookie) {
	header := c.Writer.Header()
	prefix := cookie.Name + "="
	var kept []string
	for _, line := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(line, prefix) {
			kept = append(kept, line)
		}
	}
	header.Del("Set-Cookie")
	for _, line := range kept {
		header.Add("Set-Cookie", line)
	}
	if v := cookie.String(); v != "" {
		header.Add("Set-Cookie", v)
	}
}
