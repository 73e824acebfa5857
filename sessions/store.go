package sessions

import (
	"context"
	"time"
)

type SessionId string

// Session binds an opaque id to a principal until ExpiresAt.
type Session struct {
	Id        SessionId
	UserId    string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions. Loads and deletes of unknown ids report
// ErrSessionNotFound.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSessionById(ctx context.Context, id SessionId) (Session, error)
	DeleteSessionById(ctx context.Context, id SessionId) error
	// DeleteExpiredSessions removes every session expired at now and
	// returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
