package domain

import (
	"context"
	"strings"
)

const DefaultUserID = "local"

// Session identifies the caller on whose behalf snapshots are read and written.
// It is passed explicitly to the store and to external collaborators.
type Session struct {
	UserID    string
	RequestID string
}

func NewSession(userID, requestID string) Session {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = DefaultUserID
	}
	return Session{UserID: userID, RequestID: strings.TrimSpace(requestID)}
}

type sessionKey struct{}

func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}
