package auth

import (
	"context"
	"errors"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/secrets"
	"github.com/cameronmore/authd/sessions"
	"github.com/cameronmore/authd/tokens"
)

const (
	KindSession = "session"
	KindToken   = "token"
)

// Credential is what a client presents on later requests.
type Credential struct {
	Kind      string
	Value     string
	ExpiresAt time.Time
}

// Issuer is one identity discipline. A process runs exactly one.
//
// Resolve returns ErrUnauthenticated for any credential that does not
// identify a principal, and a wrapped ErrStoreUnavailable when it cannot
// tell. Revoke is idempotent and ignores credentials that are already
// invalid.
type Issuer interface {
	Kind() string
	Issue(ctx context.Context, p accounts.Principal) (Credential, error)
	Resolve(ctx context.Context, value string) (userId string, err error)
	Revoke(ctx context.Context, value string) error
}

// SessionIssuer stores a session per login and hands out its signed id.
type SessionIssuer struct {
	store sessions.Store
	key   *secrets.Key
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionIssuer(store sessions.Store, key *secrets.Key, ttl time.Duration, now func() time.Time) *SessionIssuer {
	if now == nil {
		now = time.Now
	}
	return &SessionIssuer{store: store, key: key, ttl: ttl, now: now}
}

func (s *SessionIssuer) Kind() string { return KindSession }

func (s *SessionIssuer) Issue(ctx context.Context, p accounts.Principal) (Credential, error) {
	id := sessions.NewSessionId()
	// Stores keep unix seconds.
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)

	signed, err := sessions.Sign(id, s.key)
	if err != nil {
		return Credential{}, err
	}
	err = s.store.SaveSession(ctx, sessions.Session{Id: id, UserId: p.UserId, ExpiresAt: expiresAt})
	if err != nil {
		return Credential{}, storeError(err)
	}
	return Credential{Kind: KindSession, Value: signed, ExpiresAt: expiresAt}, nil
}

func (s *SessionIssuer) Resolve(ctx context.Context, value string) (string, error) {
	id, err := sessions.Verify(value, s.key)
	if err != nil {
		return "", ErrUnauthenticated
	}
	sess, err := s.store.LoadSessionById(ctx, id)
	if errors.Is(err, sessions.ErrSessionNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", storeError(err)
	}
	if sess.Expired(s.now()) {
		// The sweeper would remove it later anyway.
		if err := s.store.DeleteSessionById(ctx, id); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
			return "", storeError(err)
		}
		return "", ErrUnauthenticated
	}
	return sess.UserId, nil
}

func (s *SessionIssuer) Revoke(ctx context.Context, value string) error {
	id, err := sessions.Verify(value, s.key)
	if err != nil {
		return nil
	}
	err = s.store.DeleteSessionById(ctx, id)
	if err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		return storeError(err)
	}
	return nil
}

// TokenIssuer hands out signed bearer tokens.
type TokenIssuer struct {
	tokens *tokens.Issuer
}

func NewTokenIssuer(t *tokens.Issuer) *TokenIssuer {
	return &TokenIssuer{tokens: t}
}

func (t *TokenIssuer) Kind() string { return KindToken }

func (t *TokenIssuer) Issue(_ context.Context, p accounts.Principal) (Credential, error) {
	tok, err := t.tokens.Issue(p.UserId)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Kind: KindToken, Value: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (t *TokenIssuer) Resolve(ctx context.Context, value string) (string, error) {
	claims, err := t.tokens.Verify(ctx, value)
	if errors.Is(err, tokens.ErrInvalidToken) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", storeError(err)
	}
	return claims.Subject, nil
}

func (t *TokenIssuer) Revoke(ctx context.Context, value string) error {
	if err := t.tokens.Revoke(ctx, value); err != nil {
		return storeError(err)
	}
	return nil
}
