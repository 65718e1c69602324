package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"

	"sample_app/internal/feature/auth/domain"
	"sample_app/internal/feature/auth/domain/entity"
)

// SessionTokenMode selects where the anti-replay session token comes from.
type SessionTokenMode string

const (
	// SessionTokenShared reuses the remember digest as the session token.
	// Forgetting a user therefore also ends that user's sessions on every device.
	SessionTokenShared SessionTokenMode = "shared"

	// SessionTokenIndependent keeps the session token in its own column, so
	// logging out one remembered browser leaves other sessions alive.
	SessionTokenIndependent SessionTokenMode = "independent"
)

// Valid reports whether m is a known mode.
func (m SessionTokenMode) Valid() bool {
	return m == SessionTokenShared || m == SessionTokenIndependent
}

// dummyPasswordDigest is compared against when no user matches the email,
// so that login takes the same time whether or not the account exists.
const dummyPasswordDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Auth event names reported to the Recorder.
const (
	eventLogin   = "login"
	eventSession = "session"
	eventLogout  = "logout"
)

// SessionManager resolves and changes the identity attached to a request.
type SessionManager struct {
	users    UserRepository
	hasher   Hasher
	tokens   TokenGenerator
	mode     SessionTokenMode
	recorder Recorder
}

// NewSessionManager creates a SessionManager. An unknown mode falls back to
// SessionTokenShared and a nil recorder disables event counting.
func NewSessionManager(users UserRepository, hasher Hasher, tokens TokenGenerator, mode SessionTokenMode, recorder Recorder) *SessionManager {
	if !mode.Valid() {
		mode = SessionTokenShared
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SessionManager{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mode:     mode,
		recorder: recorder,
	}
}

// Mode returns the configured session token mode.
func (m *SessionManager) Mode() SessionTokenMode {
	return m.mode
}

// Authenticate checks an email/password pair.
// Unknown emails and wrong passwords both yield domain.ErrAuthenticationFailure.
func (m *SessionManager) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := m.users.FindByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, storeFailure("find user by email", err)
		}
		user = nil
	}

	digest := dummyPasswordDigest
	if user != nil {
		digest = user.PasswordDigest
	}
	// Always run the comparison so both failure cases cost the same.
	matched := m.hasher.Verify(digest, password)

	if user == nil || !matched {
		m.recorder.Inc(eventLogin, "invalid_credentials")
		return nil, domain.ErrAuthenticationFailure
	}
	if !user.Activated {
		m.recorder.Inc(eventLogin, "not_activated")
		return nil, domain.ErrAccountNotActivated
	}
	return user, nil
}

// SignIn starts a fresh session for a user who just presented valid credentials.
// It returns the location stored before login, or fallback.
func (m *SessionManager) SignIn(ctx context.Context, req *Request, user *entity.User, rememberMe bool, fallback string) (string, error) {
	forwardingURL := m.ForwardingURL(req, fallback)
	// New session id on every login.
	req.Session.Reset()

	if rememberMe {
		if err := m.Remember(ctx, req, user); err != nil {
			return "", err
		}
	} else if err := m.Forget(ctx, req, user); err != nil {
		return "", err
	}
	if err := m.LogIn(ctx, req, user); err != nil {
		return "", err
	}
	m.recorder.Inc(eventLogin, "success")
	return forwardingURL, nil
}

// LogIn attaches user to the short-lived session.
// In shared mode this may mint a remember digest to serve as the session token.
func (m *SessionManager) LogIn(ctx context.Context, req *Request, user *entity.User) error {
	token, err := m.sessionToken(ctx, user)
	if err != nil {
		return err
	}
	req.Session.Set(KeyUserID, formatID(user.ID))
	req.Session.Set(KeySessionToken, token)
	req.setCurrent(user)
	return nil
}

// Remember issues a new remember token, persists its digest and sets the
// long-lived cookies. Any previous remember token of the user stops working.
func (m *SessionManager) Remember(ctx context.Context, req *Request, user *entity.User) error {
	token, err := m.remember(ctx, user)
	if err != nil {
		return err
	}
	req.Cookies.Set(KeyUserID, formatID(user.ID), CookieOptions{Permanent: true, Signed: true})
	req.Cookies.Set(KeyRememberToken, token, CookieOptions{Permanent: true})
	return nil
}

// Forget clears the user's remember digest and the long-lived cookies.
// A nil user only clears the cookies.
func (m *SessionManager) Forget(ctx context.Context, req *Request, user *entity.User) error {
	req.Cookies.Delete(KeyUserID)
	req.Cookies.Delete(KeyRememberToken)
	if user == nil {
		return nil
	}
	return m.update(ctx, user, "forget", entity.Columns{entity.ColumnRememberDigest: nil})
}

// CurrentUser returns the user attached to the request, or nil for an
// anonymous request. The answer is computed once per request.
func (m *SessionManager) CurrentUser(ctx context.Context, req *Request) (*entity.User, error) {
	if req.resolved {
		return req.current, nil
	}
	user, err := m.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if user == nil {
		req.clearCurrent()
		return nil, nil
	}
	req.setCurrent(user)
	return user, nil
}

func (m *SessionManager) resolve(ctx context.Context, req *Request) (*entity.User, error) {
	if rawID, ok := req.Session.Get(KeyUserID); ok {
		user, err := m.findUser(ctx, rawID)
		if err != nil || user == nil {
			return nil, err
		}
		token, _ := req.Session.Get(KeySessionToken)
		if !m.sessionTokenMatches(user, token) {
			m.recorder.Inc(eventSession, "token_mismatch")
			return nil, nil
		}
		return user, nil
	}

	if rawID, ok := req.Cookies.GetSigned(KeyUserID); ok {
		user, err := m.findUser(ctx, rawID)
		if err != nil || user == nil {
			return nil, err
		}
		token, _ := req.Cookies.Get(KeyRememberToken)
		if !m.Authenticated(user, entity.TokenRemember, token) {
			m.recorder.Inc(eventSession, "remember_mismatch")
			return nil, nil
		}
		if err := m.LogIn(ctx, req, user); err != nil {
			return nil, err
		}
		m.recorder.Inc(eventSession, "remembered")
		return user, nil
	}

	return nil, nil
}

// IsCurrentUser reports whether candidate is the user attached to the request.
func (m *SessionManager) IsCurrentUser(ctx context.Context, req *Request, candidate *entity.User) (bool, error) {
	if candidate == nil {
		return false, nil
	}
	current, err := m.CurrentUser(ctx, req)
	if err != nil {
		return false, err
	}
	return current != nil && current.ID == candidate.ID, nil
}

// LoggedIn reports whether the request carries an authenticated user.
func (m *SessionManager) LoggedIn(ctx context.Context, req *Request) (bool, error) {
	user, err := m.CurrentUser(ctx, req)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// LogOut forgets the current user and clears all session and cookie state.
// Calling it on an anonymous request, or twice, is a no-op.
// Local state is cleared even when the store cannot be reached; the store error is still returned.
func (m *SessionManager) LogOut(ctx context.Context, req *Request) error {
	user, err := m.CurrentUser(ctx, req)
	if err == nil {
		err = m.Forget(ctx, req, user)
	} else {
		req.Cookies.Delete(KeyUserID)
		req.Cookies.Delete(KeyRememberToken)
	}
	req.Session.Reset()
	req.clearCurrent()
	if err != nil {
		return err
	}
	if user != nil {
		m.recorder.Inc(eventLogout, "success")
	}
	return nil
}

// RevokeSessions invalidates every session and remember token of user,
// on every device.
func (m *SessionManager) RevokeSessions(ctx context.Context, user *entity.User) error {
	return m.update(ctx, user, "revoke sessions", entity.Columns{
		entity.ColumnRememberDigest: nil,
		entity.ColumnSessionToken:   nil,
	})
}

// StoreLocation remembers the requested URL for a redirect after login.
// Only GET and HEAD requests are stored.
func (m *SessionManager) StoreLocation(req *Request) {
	if req.retrievable() {
		req.Session.Set(KeyForwardingURL, req.URL)
	}
}

// ForwardingURL pops the stored location, or returns fallback when there is none.
func (m *SessionManager) ForwardingURL(req *Request, fallback string) string {
	url, ok := req.Session.Get(KeyForwardingURL)
	req.Session.Delete(KeyForwardingURL)
	if !ok || url == "" {
		return fallback
	}
	return url
}

// Authenticated reports whether token matches the user's digest of the given kind.
// A missing digest never matches.
func (m *SessionManager) Authenticated(user *entity.User, kind entity.TokenKind, token string) bool {
	return authenticated(m.hasher, user, kind, token)
}

func authenticated(hasher Hasher, user *entity.User, kind entity.TokenKind, token string) bool {
	if user == nil {
		return false
	}
	digest := user.Digest(kind)
	if digest == "" {
		return false
	}
	return hasher.Verify(digest, token)
}

// sessionToken returns the user's session token, minting one if absent.
func (m *SessionManager) sessionToken(ctx context.Context, user *entity.User) (string, error) {
	if current := m.currentSessionToken(user); current != "" {
		return current, nil
	}

	if m.mode == SessionTokenIndependent {
		token, err := m.tokens.NewToken()
		if err != nil {
			return "", err
		}
		if err := m.update(ctx, user, "mint session token", entity.Columns{entity.ColumnSessionToken: token}); err != nil {
			return "", err
		}
		return token, nil
	}

	if _, err := m.remember(ctx, user); err != nil {
		return "", err
	}
	return user.Digest(entity.TokenRemember), nil
}

// currentSessionToken returns the persisted session token without minting one.
func (m *SessionManager) currentSessionToken(user *entity.User) string {
	if m.mode == SessionTokenIndependent {
		if user.SessionToken == nil {
			return ""
		}
		return *user.SessionToken
	}
	return user.Digest(entity.TokenRemember)
}

// sessionTokenMatches compares the token held by the session with the
// persisted one. A user without a session token has no valid session.
func (m *SessionManager) sessionTokenMatches(user *entity.User, token string) bool {
	expected := m.currentSessionToken(user)
	if expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

// remember mints a remember token and stores its digest. It returns the plaintext token.
func (m *SessionManager) remember(ctx context.Context, user *entity.User) (string, error) {
	token, err := m.tokens.NewToken()
	if err != nil {
		return "", err
	}
	digest, err := m.hasher.Digest(token)
	if err != nil {
		return "", err
	}
	if err := m.update(ctx, user, "remember", entity.Columns{entity.ColumnRememberDigest: digest}); err != nil {
		return "", err
	}
	return token, nil
}

func (m *SessionManager) update(ctx context.Context, user *entity.User, operation string, cols entity.Columns) error {
	if err := m.users.UpdateColumns(ctx, user.ID, cols); err != nil {
		return storeFailure(operation, err)
	}
	user.Set(cols)
	return nil
}

// findUser loads the user named by a session or cookie value.
// Malformed ids and missing users resolve to nil without error.
func (m *SessionManager) findUser(ctx context.Context, rawID string) (*entity.User, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return nil, nil
	}
	user, err := m.users.FindByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, storeFailure("find user by id", err)
	}
	return user, nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
