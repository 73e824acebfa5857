package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cameronmore/authd/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	t.Setenv("AUTHD_SCRYPT_N", "1024")
	base := []string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}
	root.SetArgs(append(args, base...))
	err := root.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "correcthorse\n", "hash-password")
	require.NoError(t, err)

	h, err := password.NewHasher(password.Params{N: 1024, R: 8, P: 1, KeyLen: 64, SaltLen: 16})
	require.NoError(t, err)
	assert.True(t, h.Verify("correcthorse", strings.TrimSpace(out)))
}

func TestSeed_RefusesProduction(t *testing.T) {
	_, err := run(t, "", "seed",
		"--username", "alice", "--password", "password123",
		"--environment", "production",
		"--scrypt-n", "16384",
		"--session-secret", strings.Repeat("s", 32))
	assert.ErrorIs(t, err, errSeedInProduction)
}

func TestSeed_CreatesAccount(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "authd.db")
	args := []string{"seed", "--store-driver", "sqlite", "--store-dsn", dsn, "--username", "alice", "--name", "Alice"}

	out, err := run(t, "password123\n", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "created alice")

	_, err = run(t, "password123\n", args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taken")
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "authd.db")
	out, err := run(t, "", "migrate", "--store-driver", "sqlite", "--store-dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "schema version 1\n", out)

	_, err = run(t, "", "migrate")
	assert.Error(t, err, "the memory driver has no migrations")
}
