// Package auth holds the identity primitives shared by the transports and
// the services: sessions, access tokens and password hashing.
package auth

import "context"

// Session identifies the caller of an operation. A nil *Session is an
// anonymous caller; the store decides what such a caller may see.
type Session struct {
	UserID string
	Email  string
}

// ID returns the caller's account id, or "" for an anonymous session.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// Label is the identity shown in the watermark.
func (s *Session) Label() string {
	if s == nil {
		return AnonymousLabel
	}
	if s.Email != "" {
		return s.Email
	}
	return AnonymousLabel
}

// AnonymousLabel is shown when the caller has no known email.
const AnonymousLabel = "your account"

type sessionKey struct{}

// WithSession stores s in ctx. Transports use it to hand the session from
// middleware to handlers; services always receive it as a parameter.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
