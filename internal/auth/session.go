// ABOUTME: Cookie-backed session manager binding browser cookies to stored backend tokens
// ABOUTME: One Manager per session kind; admin sessions are scoped to /admin

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/guday-portal/internal/store"
)

// Cookie names used by the portal.
const (
	AdminSessionCookie   = "guday_admin_session"
	AdminCSRFCookie      = "guday_admin_csrf"
	CitizenSessionCookie = "guday_session"
	CitizenCSRFCookie    = "guday_csrf"
)

// ErrNoToken is returned when login produced no usable access token.
var ErrNoToken = errors.New("login response did not include a usable access token")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Kind       store.SessionKind
	CookieName string
	Path       string
	Duration   time.Duration
	Secure     bool
}

// Manager creates, loads and ends sessions of one kind.
type Manager struct {
	store  store.SessionStore
	opts   ManagerOptions
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager.
func NewManager(st store.SessionStore, opts ManagerOptions) *Manager {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.Duration <= 0 {
		opts.Duration = 12 * time.Hour
	}
	return &Manager{
		store:  st,
		opts:   opts,
		logger: slog.Default().With("component", "session", "kind", string(opts.Kind)),
		now:    time.Now,
	}
}

// Kind returns the kind of session this manager handles.
func (m *Manager) Kind() store.SessionKind {
	return m.opts.Kind
}

// Start stores a session for a freshly issued backend token and sets the cookie.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, username, token, tokenType string) (*store.Session, error) {
	token = NormalizeToken(token)
	if token == "" {
		return nil, ErrNoToken
	}

	id, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := m.now()
	sess := &store.Session{
		ID:        id,
		Kind:      m.opts.Kind,
		Username:  username,
		Token:     token,
		TokenType: NormalizeTokenType(tokenType),
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: SessionExpiry(now, m.opts.Duration, token),
	}
	if !sess.ExpiresAt.After(now) {
		return nil, fmt.Errorf("access token already expired at %s", sess.ExpiresAt.Format(time.RFC3339))
	}

	if err := m.store.CreateSession(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    id,
		Path:     m.opts.Path,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Info("session started", "username", username, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Load returns the live session for the request's cookie.
func (m *Manager) Load(r *http.Request) (*store.Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, store.ErrSessionNotFound
	}
	sess, err := m.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if sess.Kind != m.opts.Kind {
		return nil, store.ErrSessionNotFound
	}
	return sess, nil
}

// End deletes the request's session, if any, and clears the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(m.opts.CookieName); err == nil && cookie.Value != "" {
		if err := m.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			m.logger.Warn("failed to delete session", "error", err)
		}
	}
	m.Clear(w)
}

// Clear expires the session cookie without touching the store.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     m.opts.Path,
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Require wraps a handler so it only runs with a live session in context.
// Requests without one are redirected to loginPath.
func (m *Manager) Require(loginPath string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r)
		if err != nil {
			if !errors.Is(err, store.ErrSessionNotFound) {
				m.logger.Error("failed to load session", "error", err)
			}
			m.Clear(w)
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if err := m.store.TouchSession(r.Context(), sess.ID); err != nil {
			m.logger.Debug("failed to touch session", "error", err)
		}
		next(w, r.WithContext(WithSession(r.Context(), sess)))
	}
}

// Optional attaches the session to the context when there is one.
func (m *Manager) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, err := m.Load(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}
