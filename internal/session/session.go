// Package session resolves whether the storefront is operating for a guest
// or an authenticated identity. Presence of the auth token in local storage
// is the sole signal; the token is read exactly once per logical operation
// so a single operation never observes both modes.
package session

import (
	"context"

	"storefront-client/internal/storage"
)

// Session is a resolved snapshot of the authentication state. The zero value
// is a guest session.
type Session struct {
	token string
}

// Guest returns an unauthenticated session.
func Guest() Session {
	return Session{}
}

// Authenticated returns a session carrying the given bearer token. A blank
// token yields a guest session.
func Authenticated(token string) Session {
	return Session{token: token}
}

// IsAuthenticated reports whether the session carries a token.
func (s Session) IsAuthenticated() bool {
	return s.token != ""
}

// Token returns the bearer token, empty for guest sessions.
func (s Session) Token() string {
	return s.token
}

// Resolve reads the auth token key from storage and returns the matching
// session. A storage read failure degrades to a guest session: the
// storefront must keep rendering even when local storage misbehaves.
func Resolve(ctx context.Context, store storage.KeyValue) Session {
	token, ok, err := store.Get(ctx, storage.KeyAuthToken)
	if err != nil || !ok {
		return Guest()
	}
	return Authenticated(token)
}
