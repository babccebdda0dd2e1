// ABOUTME: Tests for SQLite store setup and session persistence
// ABOUTME: Covers create/get/touch/delete, expiry handling and cookie hashing

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// fixClock pins the store's clock to now and returns a setter for moving it.
func fixClock(s *SQLiteStore, now time.Time) func(time.Time) {
	s.now = func() time.Time { return now }
	return func(t time.Time) {
		s.now = func() time.Time { return t }
	}
}

func TestStore_NewCreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "portal.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "portal.db")
	s1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestStore_MigrationAddsOutcomeColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE audit_log (
		audit_id TEXT PRIMARY KEY, actor TEXT NOT NULL, action TEXT NOT NULL,
		target_type TEXT NOT NULL, target_id TEXT NOT NULL, ts TEXT NOT NULL, detail_json TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{Actor: "a", Action: AuditLogin, TargetType: "session", TargetID: "a"}))
	entries, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeOK, entries[0].Outcome)
}

func TestSessionStore_CreateGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fixClock(store, now)

	sess := &Session{
		ID:        "cookie-value",
		Kind:      SessionAdmin,
		Username:  "admin",
		Token:     "tok",
		TokenType: "Bearer",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, sess))
	assert.Equal(t, now, sess.CreatedAt)

	got, err := store.GetSession(ctx, "cookie-value")
	require.NoError(t, err)
	assert.Equal(t, "cookie-value", got.ID)
	assert.Equal(t, SessionAdmin, got.Kind)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "Bearer", got.TokenType)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestSessionStore_RawIDNotStored(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &Session{
		ID: "secret-cookie", Kind: SessionCitizen, Username: "u", Token: "t", TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id_hash = ?`, "secret-cookie").Scan(&n))
	assert.Equal(t, 0, n)
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id_hash = ?`, HashSessionID("secret-cookie")).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestHashSessionID(t *testing.T) {
	h := HashSessionID("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashSessionID("abc"))
	assert.NotEqual(t, h, HashSessionID("abd"))
}

func TestSessionStore_CreateRequiresID(t *testing.T) {
	store := setupTestStore(t)
	err := store.CreateSession(context.Background(), &Session{Kind: SessionAdmin})
	assert.Error(t, err)
}

func TestSessionStore_RejectsUnknownKind(t *testing.T) {
	store := setupTestStore(t)
	err := store.CreateSession(context.Background(), &Session{
		ID: "x", Kind: SessionKind("root"), ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.Error(t, err)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_Expired(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	setNow := fixClock(store, now)

	require.NoError(t, store.CreateSession(ctx, &Session{
		ID: "s1", Kind: SessionAdmin, Username: "a", Token: "t", TokenType: "Bearer",
		ExpiresAt: now.Add(time.Minute),
	}))

	_, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)

	setNow(now.Add(time.Minute))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_TouchAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	setNow := fixClock(store, now)

	require.NoError(t, store.CreateSession(ctx, &Session{
		ID: "s1", Kind: SessionAdmin, Username: "a", Token: "t", TokenType: "Bearer",
		ExpiresAt: now.Add(time.Hour),
	}))

	setNow(now.Add(5 * time.Minute))
	require.NoError(t, store.TouchSession(ctx, "s1"))
	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.LastSeen.Equal(now.Add(5*time.Minute)))

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, store.TouchSession(ctx, "s1"), ErrSessionNotFound)
	assert.NoError(t, store.DeleteSession(ctx, "s1"), "deleting twice is fine")
}

func TestSessionStore_DeleteExpiredAndCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	setNow := fixClock(store, now)

	sessions := []*Session{
		{ID: "a1", Kind: SessionAdmin, ExpiresAt: now.Add(time.Minute)},
		{ID: "a2", Kind: SessionAdmin, ExpiresAt: now.Add(time.Hour)},
		{ID: "c1", Kind: SessionCitizen, ExpiresAt: now.Add(time.Hour)},
	}
	for _, s := range sessions {
		s.Username, s.Token, s.TokenType = "u", "t", "Bearer"
		require.NoError(t, store.CreateSession(ctx, s))
	}

	n, err := store.CountSessions(ctx, SessionAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.CountSessions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	setNow(now.Add(2 * time.Minute))
	n, err = store.CountSessions(ctx, SessionAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "expired sessions are not counted")

	removed, err := store.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}
