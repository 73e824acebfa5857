// Package password derives and checks salted scrypt hashes of account passwords.
//
// A stored secret has the form
//
//	hex(derived key) "." hex(salt)
//
// The hex string of the salt, not the raw salt bytes, is fed to scrypt so that
// secrets written by earlier deployments keep verifying.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

const separator = "."

// MinSaltLen is the smallest salt, in bytes, a Hasher will generate.
const MinSaltLen = 16

var ErrEmptyPassword = errors.New("password must not be empty")

var ErrMalformedSecret = errors.New("stored secret is malformed")

var ErrMismatch = errors.New("password does not match")

// Params are the scrypt cost parameters.
type Params struct {
	N       int
	R       int
	P       int
	KeyLen  int
	SaltLen int
}

// DefaultParams take a few tens of milliseconds per derivation on commodity hardware.
var DefaultParams = Params{N: 16384, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params

	dummyOnce sync.Once
	dummy     string
}

// NewHasher validates p and returns a Hasher using it.
func NewHasher(p Params) (*Hasher, error) {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return nil, fmt.Errorf("scrypt N must be a power of two greater than 1, got %d", p.N)
	}
	if p.R <= 0 || p.P <= 0 {
		return nil, fmt.Errorf("scrypt r and p must be positive, got r=%d p=%d", p.R, p.P)
	}
	if p.KeyLen <= 0 {
		return nil, fmt.Errorf("key length must be positive, got %d", p.KeyLen)
	}
	if p.SaltLen < MinSaltLen {
		p.SaltLen = MinSaltLen
	}
	return &Hasher{params: p}, nil
}

// Params returns the parameters the Hasher was built with.
func (h *Hasher) Params() Params {
	return h.params
}

// Hash returns a new stored secret for password using a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	key, err := h.derive(password, saltHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key) + separator + saltHex, nil
}

// Verify reports whether supplied matches the stored secret. A malformed
// stored secret never matches.
func (h *Hasher) Verify(supplied, stored string) bool {
	return h.Compare(supplied, stored) == nil
}

// Compare is Verify with a reason: nil on match, ErrMismatch, or
// ErrMalformedSecret. The reason is for server-side logs only.
func (h *Hasher) Compare(supplied, stored string) error {
	want, saltHex, err := h.parse(stored)
	if err != nil {
		return err
	}
	got, err := h.derive(supplied, saltHex)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrMismatch
	}
	return nil
}

// VerifyDummy performs a full verification against a throwaway secret and
// always reports false. Callers use it when there is no stored secret to
// check, so the KDF cost is still paid.
func (h *Hasher) VerifyDummy(supplied string) bool {
	h.dummyOnce.Do(func() {
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		h.dummy, _ = h.Hash(hex.EncodeToString(buf))
	})
	h.Verify(supplied, h.dummy)
	return false
}

func (h *Hasher) parse(stored string) ([]byte, string, error) {
	parts := strings.Split(stored, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, "", ErrMalformedSecret
	}
	key, err := hex.DecodeString(parts[0])
	if err != nil || len(key) != h.params.KeyLen {
		return nil, "", ErrMalformedSecret
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return nil, "", ErrMalformedSecret
	}
	return key, parts[1], nil
}

func (h *Hasher) derive(password, saltHex string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(saltHex), h.params.N, h.params.R, h.params.P, h.params.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
