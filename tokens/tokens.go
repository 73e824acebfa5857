// Package tokens issues and verifies stateless HS256 JWTs that identify a
// principal until their encoded expiry.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cameronmore/authd/secrets"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for every verification failure: bad
// signature, malformed structure, expiry, or revocation.
var ErrInvalidToken = errors.New("invalid token")

// RevocationStore records revoked token ids until the token would have
// expired anyway.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// DeleteExpiredRevocations drops entries whose token expired at now.
	DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error)
}

// Claims are the registered claims carried by every token. Subject is the
// principal id and ID is a unique token id.
type Claims struct {
	jwt.RegisteredClaims
}

// Token is a signed token and its expiry.
type Token struct {
	Value     string
	Id        string
	ExpiresAt time.Time
}

// Issuer signs and verifies tokens with a single server-held key.
type Issuer struct {
	key         *secrets.Key
	ttl         time.Duration
	now         func() time.Time
	revocations RevocationStore
}

type Option func(*Issuer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRevocations makes Revoke effective and Verify consult the store.
// Without it, tokens remain valid until they expire.
func WithRevocations(store RevocationStore) Option {
	return func(i *Issuer) { i.revocations = store }
}

func NewIssuer(key *secrets.Key, ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{key: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the lifetime of newly issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// RevocationEnabled reports whether revoked tokens are tracked.
func (i *Issuer) RevocationEnabled() bool {
	return i.revocations != nil
}

// Issue signs a new token for userId. Claim times have whole-second
// precision, and the returned ExpiresAt matches the exp claim.
func (i *Issuer) Issue(userId string) (Token, error) {
	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl).Truncate(time.Second)
	jti := uuid.New().String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	var signed string
	err := i.key.With(func(key []byte) error {
		var err error
		signed, err = token.SignedString(key)
		return err
	})
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}
	return Token{Value: signed, Id: jti, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, structure and expiry and returns the claims.
// Failures are reported as ErrInvalidToken; a revocation store failure is
// returned as is.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (Claims, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if i.revocations != nil {
		revoked, err := i.revocations.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("checking token revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrInvalidToken
		}
	}
	return claims, nil
}

// Revoke records the token as revoked until its expiry. It is a no-op when
// revocation is disabled or the token is already invalid.
func (i *Issuer) Revoke(ctx context.Context, tokenString string) error {
	if i.revocations == nil {
		return nil
	}
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil
	}
	return i.revocations.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (i *Issuer) parse(tokenString string) (Claims, error) {
	claims := Claims{}
	var key []byte
	err := i.key.With(func(k []byte) error {
		key = make([]byte, len(k))
		copy(key, k)
		return nil
	})
	if err != nil {
		return Claims{}, err
	}
	defer clear(key)

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
