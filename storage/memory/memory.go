// Package memory provides an in-memory store for accounts, sessions and
// revoked tokens. Data is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/sessions"
)

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	users       map[string]accounts.User // by id
	usernames   map[string]string        // username -> id
	sessions    map[sessions.SessionId]sessions.Session
	revocations map[string]time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[string]accounts.User),
		usernames:   make(map[string]string),
		sessions:    make(map[sessions.SessionId]sessions.Session),
		revocations: make(map[string]time.Time),
	}
}

func (s *Store) SaveUser(_ context.Context, u accounts.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernames[u.Username]; ok {
		return accounts.ErrDuplicateUsername
	}
	if _, ok := s.users[u.UserId]; ok {
		return accounts.ErrDuplicateUsername
	}
	s.users[u.UserId] = u
	s.usernames[u.Username] = u.UserId
	return nil
}

func (s *Store) LoadUserById(_ context.Context, id string) (accounts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return accounts.User{}, accounts.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) LoadUserByUsername(_ context.Context, username string) (accounts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[username]
	if !ok {
		return accounts.User{}, accounts.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) SaveSession(_ context.Context, sess sessions.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Id] = sess
	return nil
}

func (s *Store) LoadSessionById(_ context.Context, id sessions.SessionId) (sessions.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSessionById(_ context.Context, id sessions.SessionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return sessions.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revocations[jti] = expiresAt
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revocations[jti]
	return ok, nil
}

func (s *Store) DeleteExpiredRevocations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for jti, exp := range s.revocations {
		if !now.Before(exp) {
			delete(s.revocations, jti)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error {
	return nil
}
