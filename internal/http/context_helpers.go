package httpx

import (
	"context"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/service"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *service.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the request's session and a boolean indicating presence.
func SessionFromContext(ctx context.Context) (*service.Session, bool) {
	if s, ok := ctx.Value(sessionKey{}).(*service.Session); ok && s != nil {
		return s, true
	}
	return nil, false
}

// ProfileFromContext returns the authenticated profile of the request's session.
func ProfileFromContext(ctx context.Context) (domainauth.Profile, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return domainauth.Profile{}, false
	}
	return s.Profile()
}

// IsAnonymous reports whether the request context has no authenticated session.
func IsAnonymous(ctx context.Context) bool {
	_, ok := ProfileFromContext(ctx)
	return !ok
}
