// Package secrets keeps server-held signing keys in memguard enclaves so they
// are encrypted while at rest in process memory.
package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

var ErrEmptyKey = errors.New("key must not be empty")

// Key is a sealed symmetric key.
type Key struct {
	enclave *memguard.Enclave
	size    int
}

// NewKey seals a copy of b. The caller keeps ownership of b.
func NewKey(b []byte) (*Key, error) {
	if len(b) == 0 {
		return nil, ErrEmptyKey
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	// NewEnclave wipes buf.
	return &Key{enclave: memguard.NewEnclave(buf), size: len(b)}, nil
}

// Generate returns a Key of n random bytes.
func Generate(n int) (*Key, error) {
	if n <= 0 {
		return nil, ErrEmptyKey
	}
	buf := memguard.NewBufferRandom(n)
	return &Key{enclave: buf.Seal(), size: n}, nil
}

// Len returns the key size in bytes.
func (k *Key) Len() int {
	return k.size
}

// With opens the key for the duration of fn. fn must not retain the slice.
func (k *Key) With(fn func(key []byte) error) error {
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Bytes returns an unprotected copy of the key, for libraries that keep
// their own reference to key material.
func (k *Key) Bytes() ([]byte, error) {
	var out []byte
	err := k.With(func(key []byte) error {
		out = make([]byte, len(key))
		copy(out, key)
		return nil
	})
	return out, err
}

// MAC returns HMAC-SHA256(key, msg).
func (k *Key) MAC(msg []byte) ([]byte, error) {
	var sum []byte
	err := k.With(func(key []byte) error {
		mac := hmac.New(sha256.New, key)
		mac.Write(msg)
		sum = mac.Sum(nil)
		return nil
	})
	return sum, err
}
