// ABOUTME: Request-scoped dashboard session carried through handlers
// ABOUTME: Provides WithSession/FromContext for the browser session id and admin identity

package auth

import (
	"context"
)

// Session holds what handlers need to know about the current browser.
type Session struct {
	ID     string     // random per-browser id, scopes stale guards and nonces
	Locale string     // negotiated locale
	Admin  *TokenInfo // nil when no token is stored or it is opaque
	Signed bool       // a token is stored
}

// sessionKey is the key type for storing Session in context.Context.
type sessionKey struct{}

// WithSession returns a new context with the Session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext retrieves the Session from the context, returning nil if not present.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
