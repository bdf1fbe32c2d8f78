package session

import (
	"context"
	"errors"
)

// Using an unexported type prevents key collisions from other packages.
type contextKey string

const sessionKey contextKey = "session"

// WithSession injects the decoded session into the context for later
// handlers to access.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext retrieves the session placed in the context by the
// request gate.
func FromContext(ctx context.Context) (Session, error) {
	sess, ok := ctx.Value(sessionKey).(Session)
	if !ok {
		return Session{}, errors.New("session not found in context")
	}
	return sess, nil
}
