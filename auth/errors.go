package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is the single login failure. It never says whether
// the username exists.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUnauthenticated means a presented credential does not identify anyone.
var ErrUnauthenticated = errors.New("unauthenticated")

var ErrInvalidRegistration = errors.New("invalid registration")

// ErrStoreUnavailable wraps account, session and revocation store failures.
var ErrStoreUnavailable = errors.New("store unavailable")

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
