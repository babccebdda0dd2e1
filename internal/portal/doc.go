// Package portal serves the public government-services website.
//
// # Overview
//
// Every page is a server-rendered view over the services API. Reads go
// through the shared query cache, so a burst of visitors to the same service
// page costs one backend round trip per cache TTL.
//
// # Routes
//
//	GET  /                   categories and featured services
//	GET  /services/{slug}    service detail with steps, documents and FAQs
//	GET  /categories/{slug}  services in one category
//	GET  /search             services filtered by text and category
//	GET  /search/suggest     quick-search dropdown fragment
//	GET  /login, POST /login citizen sign-in
//	POST /logout             citizen sign-out
//
// # Sessions
//
// A citizen's access token is held in a server-side session. The browser only
// sees an opaque cookie; public API calls made while signed in carry the token
// as an Authorization header.
//
// Forms carry a double-submit CSRF token (see auth.CSRF).
package portal
