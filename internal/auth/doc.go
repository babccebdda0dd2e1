// Package auth manages who is signed in to the portal.
//
// The portal never authenticates anyone itself. Admins and citizens log in
// against the services API, which returns an access token. That token is
// kept server-side in a store.Session, and the browser only ever holds an
// opaque random cookie.
//
// # Tokens
//
// Backend tokens arrive in inconsistent shapes (quoted, with a "Bearer "
// prefix, or as the literal "undefined"). NormalizeToken and
// NormalizeTokenType clean them up; AuthHeader builds the header value sent
// on admin calls. TokenExpiry reads the unverified exp claim so a session
// never outlives its token.
//
// # Sessions
//
// A Manager handles one session kind:
//
//	admin    cookie guday_admin_session, path /admin
//	citizen  cookie guday_session, path /
//
// Manager.Require redirects to the login page when there is no live
// session; the session is then available through FromContext.
//
// # CSRF
//
// Every form POST carries a double-submit token: CSRF.Ensure issues an
// HttpOnly cookie and the page echoes it in a csrf_token field (or the
// X-CSRF-Token header); CSRF.Valid compares the two.
//
// # Login throttling
//
// LoginLimiter keeps a token bucket per client IP.
package auth
