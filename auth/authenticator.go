package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/logging"
	"github.com/cameronmore/authd/password"
	"github.com/oklog/ulid/v2"
)

// Authenticator verifies credentials and issues identities. Every entry
// point that checks a password goes through Authenticate.
type Authenticator struct {
	users  accounts.Store
	hasher *password.Hasher
	issuer Issuer
	logger logging.Logger
	now    func() time.Time

	minPasswordLength int
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(a *Authenticator) { a.logger = l }
}

// WithMinPasswordLength sets the shortest password, in characters, that
// Register accepts.
func WithMinPasswordLength(n int) Option {
	return func(a *Authenticator) { a.minPasswordLength = n }
}

func NewAuthenticator(users accounts.Store, hasher *password.Hasher, issuer Issuer, opts ...Option) *Authenticator {
	a := &Authenticator{
		users:             users,
		hasher:            hasher,
		issuer:            issuer,
		logger:            logging.Discard(),
		now:               time.Now,
		minPasswordLength: 8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issuer returns the active identity discipline.
func (a *Authenticator) Issuer() Issuer {
	return a.issuer
}

// Authenticate checks a username and password. Unknown usernames and wrong
// passwords both cost one KDF run and both return ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, pw string) (accounts.Principal, error) {
	name, err := accounts.NormalizeUsername(username)
	if err != nil {
		a.hasher.VerifyDummy(pw)
		a.logger.Info(ctx, "login failed", "reason", "invalid username")
		return accounts.Principal{}, ErrInvalidCredentials
	}

	u, err := a.users.LoadUserByUsername(ctx, name)
	if errors.Is(err, accounts.ErrUserNotFound) {
		a.hasher.VerifyDummy(pw)
		a.logger.Info(ctx, "login failed", "reason", "unknown user", "username", name)
		return accounts.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return accounts.Principal{}, storeError(err)
	}

	if err := a.hasher.Compare(pw, u.HashedPassword); err != nil {
		reason := "bad password"
		if errors.Is(err, password.ErrMalformedSecret) {
			reason = "malformed secret"
			a.logger.Error(ctx, "stored secret is malformed", "user_id", u.UserId)
		}
		a.logger.Info(ctx, "login failed", "reason", reason, "username", name)
		return accounts.Principal{}, ErrInvalidCredentials
	}
	return u.Principal, nil
}

// Registration is the input to Register.
type Registration struct {
	Username string
	Password string
	accounts.Profile
}

// Register creates an account with a freshly hashed secret and issues a
// credential for it. Validation failures wrap ErrInvalidRegistration; a
// taken username returns accounts.ErrDuplicateUsername.
func (a *Authenticator) Register(ctx context.Context, r Registration) (accounts.Principal, Credential, error) {
	p, err := a.CreateAccount(ctx, r)
	if err != nil {
		return accounts.Principal{}, Credential{}, err
	}
	cred, err := a.issuer.Issue(ctx, p)
	if err != nil {
		return accounts.Principal{}, Credential{}, err
	}
	return p, cred, nil
}

// CreateAccount is Register without signing the new account in.
func (a *Authenticator) CreateAccount(ctx context.Context, r Registration) (accounts.Principal, error) {
	name, err := accounts.NormalizeUsername(r.Username)
	if err != nil {
		return accounts.Principal{}, fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}
	if utf8.RuneCountInString(r.Password) < a.minPasswordLength {
		return accounts.Principal{}, fmt.Errorf("%w: password shorter than %d characters", ErrInvalidRegistration, a.minPasswordLength)
	}

	hashed, err := a.hasher.Hash(r.Password)
	if err != nil {
		return accounts.Principal{}, fmt.Errorf("hashing password: %w", err)
	}

	now := a.now().UTC().Truncate(time.Second)
	u := accounts.User{
		Principal: accounts.Principal{
			UserId:       ulid.MustNewDefault(now).String(),
			Username:     name,
			Name:         r.Name,
			Bio:          r.Bio,
			Website:      r.Website,
			ProfileImage: r.ProfileImage,
			CreatedAt:    now,
		},
		HashedPassword: hashed,
	}
	if err := a.users.SaveUser(ctx, u); err != nil {
		if errors.Is(err, accounts.ErrDuplicateUsername) {
			return accounts.Principal{}, err
		}
		return accounts.Principal{}, storeError(err)
	}
	a.logger.Info(ctx, "account created", "user_id", u.UserId)
	return u.Principal, nil
}

// Login authenticates and issues a credential.
func (a *Authenticator) Login(ctx context.Context, username, pw string) (accounts.Principal, Credential, error) {
	p, err := a.Authenticate(ctx, username, pw)
	if err != nil {
		return accounts.Principal{}, Credential{}, err
	}
	cred, err := a.issuer.Issue(ctx, p)
	if err != nil {
		return accounts.Principal{}, Credential{}, err
	}
	return p, cred, nil
}

// Resolve maps a presented credential to its principal. A credential for
// an account that no longer exists is ErrUnauthenticated.
func (a *Authenticator) Resolve(ctx context.Context, credential string) (accounts.Principal, error) {
	if credential == "" {
		return accounts.Principal{}, ErrUnauthenticated
	}
	userId, err := a.issuer.Resolve(ctx, credential)
	if err != nil {
		return accounts.Principal{}, err
	}
	u, err := a.users.LoadUserById(ctx, userId)
	if errors.Is(err, accounts.ErrUserNotFound) {
		return accounts.Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return accounts.Principal{}, storeError(err)
	}
	return u.Principal, nil
}

// Logout invalidates credential. Unknown or already invalid credentials
// are not an error.
func (a *Authenticator) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return a.issuer.Revoke(ctx, credential)
}
