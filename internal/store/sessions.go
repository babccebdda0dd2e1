// ABOUTME: Server-side sessions holding backend access tokens for admins and citizens.
// ABOUTME: Only a blake2b hash of the cookie value is stored, never the value itself.

package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrSessionNotFound is returned when a session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionKind separates admin back-office sessions from citizen sessions.
type SessionKind string

const (
	SessionAdmin   SessionKind = "admin"
	SessionCitizen SessionKind = "citizen"
)

// Session is a signed-in browser. ID is the raw cookie value and is only
// known to the caller that created or looked up the session.
type Session struct {
	ID        string
	Kind      SessionKind
	Username  string
	Token     string
	TokenType string
	CreatedAt time.Time
	ExpiresAt time.Time
	LastSeen  time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	CountSessions(ctx context.Context, kind SessionKind) (int, error)
}

// HashSessionID returns the storage key for a cookie value.
func HashSessionID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// CreateSession stores a new session. CreatedAt and LastSeen default to now.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastSeen.IsZero() {
		sess.LastSeen = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id_hash, kind, username, token, token_type, created_at, expires_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		HashSessionID(sess.ID),
		string(sess.Kind),
		sess.Username,
		sess.Token,
		sess.TokenType,
		formatTime(sess.CreatedAt),
		formatTime(sess.ExpiresAt),
		formatTime(sess.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession returns a live session. Expired sessions are reported as
// ErrSessionNotFound and left for DeleteExpiredSessions.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var kind, createdAt, expiresAt, lastSeen string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, username, token, token_type, created_at, expires_at, last_seen
		FROM sessions WHERE id_hash = ?
	`, HashSessionID(id)).Scan(&kind, &sess.Username, &sess.Token, &sess.TokenType, &createdAt, &expiresAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.ID = id
	sess.Kind = SessionKind(kind)
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if sess.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	if sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// TouchSession records activity on a session.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen = ? WHERE id_hash = ?`,
		formatTime(s.now()), HashSessionID(id))
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, HashSessionID(id)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every expired session and returns how many went.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("deleted expired sessions", "count", n)
	}
	return n, nil
}

// CountSessions counts live sessions of a kind. An empty kind counts all.
func (s *SQLiteStore) CountSessions(ctx context.Context, kind SessionKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE expires_at > ? AND (? = '' OR kind = ?)
	`, formatTime(s.now()), string(kind), string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}
