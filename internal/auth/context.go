// ABOUTME: Session context for tracking the signed-in identity through request handlers
// ABOUTME: Provides WithSession/FromContext for propagating sessions via context

package auth

import (
	"context"

	"github.com/2389/guday-portal/internal/store"
)

// sessionContextKey is the key type for storing sessions in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the session attached.
func WithSession(ctx context.Context, sess *store.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext retrieves the session from the context, returning nil if not present.
func FromContext(ctx context.Context) *store.Session {
	val := ctx.Value(sessionContextKey{})
	if val == nil {
		return nil
	}
	sess, ok := val.(*store.Session)
	if !ok {
		return nil
	}
	return sess
}

// MustFromContext retrieves the session from the context, panicking if not present.
func MustFromContext(ctx context.Context) *store.Session {
	sess := FromContext(ctx)
	if sess == nil {
		panic("auth: session not found in context")
	}
	return sess
}

// HeaderFromContext returns the Authorization header value for the session
// in ctx, or "" when there is none.
func HeaderFromContext(ctx context.Context) string {
	sess := FromContext(ctx)
	if sess == nil {
		return ""
	}
	return AuthHeader(sess.TokenType, sess.Token)
}
