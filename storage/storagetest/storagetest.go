// Package storagetest holds the behaviour every storage backend must share.
// Backend tests call Run with a constructor that returns an empty store.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/sessions"
	"github.com/cameronmore/authd/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is the combined contract exercised by Run.
type Store interface {
	accounts.Store
	sessions.Store
	tokens.RevocationStore
}

// Run executes the conformance suite. newStore must return an empty store
// on every call; cleanup is the caller's responsibility (t.Cleanup).
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, newStore(t)) })
	t.Run("UsernamesAreExact", func(t *testing.T) { testUsernamesAreExact(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("ExpiredSessions", func(t *testing.T) { testExpiredSessions(t, newStore(t)) })
	t.Run("Revocations", func(t *testing.T) { testRevocations(t, newStore(t)) })
}

// base is truncated to seconds since SQL backends keep unix seconds.
var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func alice() accounts.User {
	return accounts.User{
		Principal: accounts.Principal{
			UserId:       "01J0000000000000000000ALCE",
			Username:     "alice",
			Name:         "Alice",
			Bio:          "hello",
			Website:      "https://alice.example",
			ProfileImage: "https://alice.example/me.png",
			CreatedAt:    base,
		},
		HashedPassword: "aa.bb",
	}
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	want := alice()
	require.NoError(t, s.SaveUser(ctx, want))

	byId, err := s.LoadUserById(ctx, want.UserId)
	require.NoError(t, err)
	assert.Equal(t, want.UserId, byId.UserId)
	assert.Equal(t, want.Username, byId.Username)
	assert.Equal(t, want.HashedPassword, byId.HashedPassword)
	assert.Equal(t, want.Name, byId.Name)
	assert.Equal(t, want.Bio, byId.Bio)
	assert.Equal(t, want.Website, byId.Website)
	assert.Equal(t, want.ProfileImage, byId.ProfileImage)
	assert.True(t, want.CreatedAt.Equal(byId.CreatedAt), "created at: want %v got %v", want.CreatedAt, byId.CreatedAt)

	byName, err := s.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want.UserId, byName.UserId)
	assert.Equal(t, want.HashedPassword, byName.HashedPassword)

	_, err = s.LoadUserById(ctx, "missing")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
	_, err = s.LoadUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func testDuplicateUsername(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveUser(ctx, alice()))

	again := alice()
	again.UserId = "01J0000000000000000000OTHR"
	again.HashedPassword = "cc.dd"
	assert.ErrorIs(t, s.SaveUser(ctx, again), accounts.ErrDuplicateUsername)

	u, err := s.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "aa.bb", u.HashedPassword, "the first account must be untouched")
}

// Usernames compare byte for byte: no case or accent folding.
func testUsernamesAreExact(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveUser(ctx, alice()))

	upper := alice()
	upper.UserId = "01J0000000000000000000UPPR"
	upper.Username = "Alice"
	upper.HashedPassword = "cc.dd"
	require.NoError(t, s.SaveUser(ctx, upper), "a username differing only in case is a different account")

	u, err := s.LoadUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, upper.UserId, u.UserId)
	u, err = s.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice().UserId, u.UserId)

	for _, name := range []string{"ALICE", "al\u00edce", "alice "} {
		_, err := s.LoadUserByUsername(ctx, name)
		assert.ErrorIs(t, err, accounts.ErrUserNotFound, name)
	}
}

func testSessions(t *testing.T, s Store) {
	ctx := context.Background()
	sess := sessions.Session{Id: "sess-1", UserId: "u-1", ExpiresAt: base.Add(time.Hour)}
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.LoadSessionById(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Id, got.Id)
	assert.Equal(t, sess.UserId, got.UserId)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	_, err = s.LoadSessionById(ctx, "nope")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)

	require.NoError(t, s.DeleteSessionById(ctx, "sess-1"))
	_, err = s.LoadSessionById(ctx, "sess-1")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSessionById(ctx, "sess-1"), sessions.ErrSessionNotFound)
}

func testExpiredSessions(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveSession(ctx, sessions.Session{Id: "old", UserId: "u", ExpiresAt: base.Add(-time.Minute)}))
	require.NoError(t, s.SaveSession(ctx, sessions.Session{Id: "edge", UserId: "u", ExpiresAt: base}))
	require.NoError(t, s.SaveSession(ctx, sessions.Session{Id: "live", UserId: "u", ExpiresAt: base.Add(time.Minute)}))

	n, err := s.DeleteExpiredSessions(ctx, base)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.LoadSessionById(ctx, "live")
	assert.NoError(t, err)
	_, err = s.LoadSessionById(ctx, "edge")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func testRevocations(t *testing.T, s Store) {
	ctx := context.Background()

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeToken(ctx, "jti-1", base.Add(time.Hour)))
	require.NoError(t, s.RevokeToken(ctx, "jti-2", base.Add(-time.Hour)))
	// Revoking twice is not an error.
	require.NoError(t, s.RevokeToken(ctx, "jti-1", base.Add(time.Hour)))

	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := s.DeleteExpiredRevocations(ctx, base)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	revoked, err = s.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
