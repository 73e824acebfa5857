package auth

import (
	"context"
	"testing"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	registered, _ := h.register(t, "alice", "password123")

	p, err := h.auth.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered, p)

	// Surrounding whitespace is normalised away.
	_, err = h.auth.Authenticate(ctx, "  alice ", "password123")
	assert.NoError(t, err)
}

func TestAuthenticate_FailuresAreUniform(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "password123")

	_, errUnknown := h.auth.Authenticate(ctx, "nosuchuser", "password123")
	_, errWrong := h.auth.Authenticate(ctx, "alice", "wrongpassword")
	_, errInvalid := h.auth.Authenticate(ctx, "", "password123")

	for _, err := range []error{errUnknown, errWrong, errInvalid} {
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
	}
}

func TestAuthenticate_MalformedStoredSecret(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveUser(ctx, accounts.User{
		Principal:      accounts.Principal{UserId: "u-1", Username: "mallory"},
		HashedPassword: "deadbeef",
	}))

	_, err := h.auth.Authenticate(ctx, "mallory", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_StoreUnavailable(t *testing.T) {
	h := newSessionHarness(t)
	h.auth.users = failingStore{h.store}

	_, err := h.auth.Authenticate(context.Background(), "alice", "password123")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()

	p, cred, err := h.auth.Register(ctx, Registration{
		Username: "alice",
		Password: "password123",
		Profile:  accounts.Profile{Name: "Alice", Bio: "hi"},
	})
	require.NoError(t, err)

	_, err = ulid.ParseStrict(p.UserId)
	assert.NoError(t, err, "user ids are ULIDs")
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, h.clock.Now(), p.CreatedAt)
	assert.Equal(t, KindSession, cred.Kind)

	stored, err := h.store.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.HashedPassword)
	assert.True(t, h.hasher.Verify("password123", stored.HashedPassword))
}

func TestRegister_Rejections(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "password123")

	_, _, err := h.auth.Register(ctx, Registration{Username: "alice", Password: "anotherpass"})
	assert.ErrorIs(t, err, accounts.ErrDuplicateUsername)

	_, _, err = h.auth.Register(ctx, Registration{Username: "bad name", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	_, _, err = h.auth.Register(ctx, Registration{Username: "bob", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	_, err = h.store.LoadUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func TestSessionDiscipline(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	alice, _ := h.register(t, "alice", "password123")

	_, cred, err := h.auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(30*24*time.Hour), cred.ExpiresAt)

	p, err := h.auth.Resolve(ctx, cred.Value)
	require.NoError(t, err)
	assert.Equal(t, alice.UserId, p.UserId)

	require.NoError(t, h.auth.Logout(ctx, cred.Value))
	_, err = h.auth.Resolve(ctx, cred.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Logout is idempotent.
	assert.NoError(t, h.auth.Logout(ctx, cred.Value))
	assert.NoError(t, h.auth.Logout(ctx, "garbage"))
	assert.NoError(t, h.auth.Logout(ctx, ""))
}

func TestSessionDiscipline_Expiry(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	_, cred := h.register(t, "alice", "password123")

	h.clock.Advance(30*24*time.Hour - time.Second)
	_, err := h.auth.Resolve(ctx, cred.Value)
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.auth.Resolve(ctx, cred.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	n, err := h.store.DeleteExpiredSessions(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "expired session is removed when it is presented")
}

func TestSessionDiscipline_TamperedCookie(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	_, cred := h.register(t, "alice", "password123")

	tampered := []byte(cred.Value)
	tampered[len(tampered)-2] ^= 0x01
	_, err := h.auth.Resolve(ctx, string(tampered))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenDiscipline_NoRevocation(t *testing.T) {
	h := newTokenHarness(t, false)
	ctx := context.Background()
	alice, cred := h.register(t, "alice", "password123")
	assert.Equal(t, KindToken, cred.Kind)

	p, err := h.auth.Resolve(ctx, cred.Value)
	require.NoError(t, err)
	assert.Equal(t, alice.UserId, p.UserId)

	// Tokens stay valid until exp when revocation is off.
	require.NoError(t, h.auth.Logout(ctx, cred.Value))
	_, err = h.auth.Resolve(ctx, cred.Value)
	assert.NoError(t, err)

	h.clock.Advance(7*24*time.Hour + time.Second)
	_, err = h.auth.Resolve(ctx, cred.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenDiscipline_RevokeOnLogout(t *testing.T) {
	h := newTokenHarness(t, true)
	ctx := context.Background()
	_, cred := h.register(t, "alice", "password123")

	require.NoError(t, h.auth.Logout(ctx, cred.Value))
	_, err := h.auth.Resolve(ctx, cred.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, fresh, err := h.auth.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	_, err = h.auth.Resolve(ctx, fresh.Value)
	assert.NoError(t, err)
}

func TestResolve_DeletedAccount(t *testing.T) {
	h := newTokenHarness(t, false)
	ctx := context.Background()

	tok, err := h.auth.Issuer().Issue(ctx, accounts.Principal{UserId: "ghost"})
	require.NoError(t, err)

	_, err = h.auth.Resolve(ctx, tok.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_StoreUnavailable(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	_, cred := h.register(t, "alice", "password123")
	h.auth.users = failingStore{h.store}

	_, err := h.auth.Resolve(ctx, cred.Value)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
