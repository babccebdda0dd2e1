// Package store provides local persistence for the portal using SQLite.
//
// The portal keeps very little state of its own: the services API is the
// source of truth for every catalog and back-office record. What lives here
// is what the API cannot hold for us:
//
//   - Session: a signed-in browser, mapping an opaque cookie to the backend
//     access token obtained at login. Only a blake2b-256 hash of the cookie
//     value is stored.
//   - AuditEntry: one admin mutation (who, what, which resource, outcome).
//
// SQLiteStore implements both SessionStore and AuditStore.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as RFC3339 UTC strings so that lexical order is
// chronological order.
//
// # Errors
//
//   - ErrSessionNotFound: the session does not exist or has expired
//
// Use NewSQLiteStore with a path under t.TempDir() in tests.
package store
