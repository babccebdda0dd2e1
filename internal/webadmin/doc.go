// Package webadmin provides the web-based administration back-office.
//
// # Overview
//
// The back-office provides a browser-based interface for:
//
//   - Services: list, create, edit, publish, archive, delete, manage steps, bulk import
//   - Categories: the category tree with create, edit and delete
//   - Agents: support agent accounts, categories and one-time passwords
//   - Users: system users with role and category assignment
//   - Tickets: the unclaimed queue, active ticket lookup, claim, close and reply
//   - Settings and audit log
//
// Every page is a view over the services admin API. The back-office keeps no
// domain data of its own besides sessions and the audit log.
//
// # Authentication
//
// Admins sign in with the services API admin login. The returned access
// token is kept in a server-side session (see auth.Manager); the browser only
// holds an opaque cookie. When the API answers 401 the session is ended and
// the admin is sent back to /admin/login.
//
// Logins are throttled per client IP.
//
// # Caching
//
// Reads go through the shared query cache, keyed per session so one admin
// never sees another's view. Each write invalidates the query families it
// touches (see cache.InvalidateFor), including the public ones, so the portal
// shows the change immediately.
//
// # Auditing
//
// Every write, successful or not, is appended to the local audit log with
// the acting admin, the target and the outcome.
//
// # CSRF Protection
//
// All form submissions require CSRF tokens:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
//
// Tokens are validated on every unsafe request.
//
// # Usage
//
//	admin := webadmin.New(client, queries, adminSessions, store, limiter, cfg)
//	admin.RegisterRoutes(mux)
package webadmin
