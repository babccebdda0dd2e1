// ABOUTME: Package backend is the REST client for the Guday services API.
// ABOUTME: It owns request construction, error extraction and envelope normalization.

// Package backend talks to the Guday services API on behalf of the portal.
//
// The API is inconsistent about response shapes: lists arrive as bare arrays,
// as {"data": [...]}, as {"data": {"services": [...]}} or as {"items": [...]},
// and single objects may or may not be wrapped in "data". Every operation in
// this package routes its payload through the normalizer in envelope.go so
// callers only ever see typed values.
//
// Public operations are anonymous unless a citizen authorization header has
// been attached to the context with WithAuthorization. Admin operations take
// the authorization header explicitly and fail with ErrNoSession when it is
// empty.
package backend
