// Package server assembles guday-portal into a single HTTP server.
//
// New opens the sqlite store, builds the services API client, the query
// cache and per-audience login limiters, and registers on one mux:
//
//   - /health and /health/ready
//   - /static/ embedded assets
//   - the public portal (package portal)
//   - the back-office under /admin (package webadmin)
//
// Every request passes through request id, access logging, panic recovery
// and security header middleware.
//
// Run listens on server.http_addr and blocks until its context is canceled,
// then shuts down with a five second grace period. While running, expired
// sessions are swept from the store every ten minutes.
package server
