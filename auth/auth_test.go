package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/password"
	"github.com/cameronmore/authd/secrets"
	"github.com/cameronmore/authd/storage/memory"
	"github.com/cameronmore/authd/tokens"
	"github.com/stretchr/testify/require"
)

var testParams = password.Params{N: 1024, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// failingStore reports a store failure from every account lookup.
type failingStore struct {
	*memory.Store
}

var errDBDown = errors.New("db down")

func (f failingStore) LoadUserByUsername(context.Context, string) (accounts.User, error) {
	return accounts.User{}, errDBDown
}

func (f failingStore) LoadUserById(context.Context, string) (accounts.User, error) {
	return accounts.User{}, errDBDown
}

type harness struct {
	store  *memory.Store
	clock  *fakeClock
	hasher *password.Hasher
	auth   *Authenticator
}

func newHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(testParams)
	require.NoError(t, err)
	return h
}

func newKey(t *testing.T) *secrets.Key {
	t.Helper()
	k, err := secrets.NewKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return k
}

func newSessionHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memory.New(), clock: newFakeClock(), hasher: newHasher(t)}
	issuer := NewSessionIssuer(h.store, newKey(t), 30*24*time.Hour, h.clock.Now)
	h.auth = NewAuthenticator(h.store, h.hasher, issuer, WithClock(h.clock.Now))
	return h
}

func newTokenHarness(t *testing.T, revocation bool) *harness {
	t.Helper()
	h := &harness{store: memory.New(), clock: newFakeClock(), hasher: newHasher(t)}
	opts := []tokens.Option{tokens.WithClock(h.clock.Now)}
	if revocation {
		opts = append(opts, tokens.WithRevocations(h.store))
	}
	issuer := NewTokenIssuer(tokens.NewIssuer(newKey(t), tokens.DefaultTTL, opts...))
	h.auth = NewAuthenticator(h.store, h.hasher, issuer, WithClock(h.clock.Now))
	return h
}

func (h *harness) register(t *testing.T, username, pw string) (accounts.Principal, Credential) {
	t.Helper()
	p, cred, err := h.auth.Register(context.Background(), Registration{Username: username, Password: pw})
	require.NoError(t, err)
	return p, cred
}
