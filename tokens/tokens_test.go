package tokens

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cameronmore/authd/secrets"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeRevocations struct {
	revoked map[string]time.Time
	err     error
}

func (f *fakeRevocations) RevokeToken(_ context.Context, jti string, exp time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[jti] = exp
	return nil
}

func (f *fakeRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}

func (f *fakeRevocations) DeleteExpiredRevocations(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newKey(t *testing.T, s string) *secrets.Key {
	t.Helper()
	k, err := secrets.NewKey([]byte(s))
	require.NoError(t, err)
	return k
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: t0}
	iss := NewIssuer(newKey(t, "super-secret"), DefaultTTL, WithClock(clock.Now))

	tok, err := iss.Issue("user-123")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(7*24*time.Hour), tok.ExpiresAt)
	assert.NotEmpty(t, tok.Id)

	claims, err := iss.Verify(context.Background(), tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, tok.Id, claims.ID)
	assert.Equal(t, t0, claims.IssuedAt.Time.UTC())
}

func TestIssue_ExpiresAtMatchesClaim(t *testing.T) {
	clock := &fakeClock{now: t0.Add(750 * time.Millisecond)}
	iss := NewIssuer(newKey(t, "super-secret"), 90*time.Minute+400*time.Millisecond, WithClock(clock.Now))

	tok, err := iss.Issue("u1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(90*time.Minute), tok.ExpiresAt)

	claims, err := iss.Verify(context.Background(), tok.Value)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(claims.ExpiresAt.Time), "exp %v, reported %v", claims.ExpiresAt.Time, tok.ExpiresAt)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: t0}
	iss := NewIssuer(newKey(t, "super-secret"), DefaultTTL, WithClock(clock.Now))

	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	clock.Set(t0.Add(time.Hour))
	_, err = iss.Verify(context.Background(), tok.Value)
	assert.NoError(t, err)

	clock.Set(t0.Add(7*24*time.Hour + time.Second))
	_, err = iss.Verify(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_CorruptedSignature(t *testing.T) {
	iss := NewIssuer(newKey(t, "super-secret"), time.Hour)
	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	// A middle character carries six full bits of the signature.
	if sig[5] == 'A' {
		sig[5] = 'B'
	} else {
		sig[5] = 'A'
	}
	corrupted := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = iss.Verify(context.Background(), corrupted)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TamperedPayload(t *testing.T) {
	iss := NewIssuer(newKey(t, "super-secret"), time.Hour)
	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	other, err := iss.Issue("u2")
	require.NoError(t, err)

	a := strings.Split(tok.Value, ".")
	b := strings.Split(other.Value, ".")
	spliced := a[0] + "." + b[1] + "." + a[2]

	_, err = iss.Verify(context.Background(), spliced)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewIssuer(newKey(t, "right-secret"), time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewIssuer(newKey(t, "wrong-secret"), time.Hour).Verify(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	iss := NewIssuer(newKey(t, "k"), time.Hour)
	for _, s := range []string{"", "not.a.jwt", "a.b", "....", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := iss.Verify(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", s)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	key := []byte("super-secret")
	iss := NewIssuer(newKey(t, string(key)), time.Hour)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	_, err = iss.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	key := []byte("super-secret")
	iss := NewIssuer(newKey(t, string(key)), time.Hour)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u1",
		ID:      "j1",
	}})
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	_, err = iss.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke_Disabled(t *testing.T) {
	iss := NewIssuer(newKey(t, "k"), time.Hour)
	assert.False(t, iss.RevocationEnabled())

	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(context.Background(), tok.Value))
	_, err = iss.Verify(context.Background(), tok.Value)
	assert.NoError(t, err, "without a revocation store tokens stay valid until expiry")
}

func TestRevoke_Enabled(t *testing.T) {
	store := &fakeRevocations{revoked: map[string]time.Time{}}
	clock := &fakeClock{now: t0}
	iss := NewIssuer(newKey(t, "k"), time.Hour, WithRevocations(store), WithClock(clock.Now))

	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(context.Background(), tok.Value))
	assert.Equal(t, t0.Add(time.Hour), store.revoked[tok.Id].UTC())

	_, err = iss.Verify(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, iss.Revoke(context.Background(), "garbage"))
}

func TestVerify_RevocationStoreFailure(t *testing.T) {
	boom := errors.New("boom")
	store := &fakeRevocations{revoked: map[string]time.Time{}}
	iss := NewIssuer(newKey(t, "k"), time.Hour, WithRevocations(store))

	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	store.err = boom
	_, err = iss.Verify(context.Background(), tok.Value)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewIssuer(newKey(t, "k"), 0).TTL())
}
