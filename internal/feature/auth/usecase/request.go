package usecase

import (
	"net/http"

	"sample_app/internal/feature/auth/domain/entity"
)

// Session is the short-lived, per-browser session state. It is discarded when
// the browser session ends.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	// Reset drops every value and starts a fresh session.
	Reset()
}

// CookieOptions controls how a cookie is written.
type CookieOptions struct {
	// Permanent cookies survive browser restarts.
	Permanent bool
	// Signed cookies carry a tamper-proof value.
	Signed bool
}

// Cookies is the browser cookie jar of the current request.
type Cookies interface {
	Get(key string) (string, bool)
	// GetSigned returns the value of a signed cookie; tampered cookies are reported as absent.
	GetSigned(key string) (string, bool)
	Set(key, value string, opts CookieOptions)
	Delete(key string)
}

// Session and cookie keys.
const (
	KeyUserID        = "user_id"
	KeySessionToken  = "session_token"
	KeyRememberToken = "remember_token"
	KeyForwardingURL = "forwarding_url"
)

// Request carries the state of one inbound request. The resolved identity is
// memoized on it, so every call within the request sees the same user.
type Request struct {
	Session Session
	Cookies Cookies
	Method  string
	URL     string

	resolved bool
	current  *entity.User
}

// NewRequest creates a Request over the given session and cookies.
func NewRequest(session Session, cookies Cookies, method, url string) *Request {
	return &Request{
		Session: session,
		Cookies: cookies,
		Method:  method,
		URL:     url,
	}
}

func (r *Request) setCurrent(u *entity.User) {
	r.current = u
	r.resolved = true
}

func (r *Request) clearCurrent() {
	r.current = nil
	r.resolved = true
}

// retrievable reports whether the request is safe to replay after login.
func (r *Request) retrievable() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}
