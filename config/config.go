// Package config holds the runtime settings of authd and the layering that
// produces them: defaults, then .env file and AUTHD_* environment variables,
// then an optional JSON file, then explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/cameronmore/authd/password"
)

const (
	ModeSession = "session"
	ModeToken   = "token"

	RevocationNone   = "none"
	RevocationLogout = "logout"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	// MinSecretLen is the smallest signing secret accepted in production.
	MinSecretLen = 32
)

var Drivers = []string{"memory", "sqlite", "postgres", "mysql", "bolt"}

// Config holds runtime settings.
//
// Mode selects the single identity discipline served by the process:
// server-side sessions carried in a cookie, or stateless bearer tokens.
// TokenRevocation decides whether logout revokes bearer tokens ("logout") or
// leaves them valid until they expire ("none").
type Config struct {
	Addr        string
	Environment string
	Mode        string

	StoreDriver string
	StoreDSN    string

	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool

	TokenSecret     string
	TokenTTL        time.Duration
	TokenRevocation string

	ScryptN           int
	ScryptR           int
	ScryptP           int
	MinPasswordLength int

	// TrustedProxies lists the CIDRs or addresses of reverse proxies whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string
	// CORSOrigins are the browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// LoadDefaults populates c with development defaults. Secrets are left
// empty; Validate refuses that in production.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.Environment = EnvDevelopment
	c.Mode = ModeSession
	c.StoreDriver = "memory"
	c.StoreDSN = ""
	c.SessionSecret = ""
	c.SessionTTL = 30 * 24 * time.Hour
	c.SessionCookieName = "session_id"
	c.CookieSecure = true
	c.TokenSecret = ""
	c.TokenTTL = 7 * 24 * time.Hour
	c.TokenRevocation = RevocationNone
	c.ScryptN = 16384
	c.ScryptR = 8
	c.ScryptP = 1
	c.MinPasswordLength = 8
	c.TrustedProxies = nil
	c.CORSOrigins = nil
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.ShutdownTimeout = 10 * time.Second
}

// Production reports whether the service runs with production safeguards.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if c.Mode != ModeSession && c.Mode != ModeToken {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeSession, ModeToken, c.Mode))
	}
	if !slices.Contains(Drivers, c.StoreDriver) {
		errs = append(errs, fmt.Errorf("store driver must be one of %v, got %q", Drivers, c.StoreDriver))
	}
	if c.StoreDriver != "memory" && c.StoreDSN == "" {
		errs = append(errs, fmt.Errorf("store dsn is required for driver %q", c.StoreDriver))
	}
	if c.TokenRevocation != RevocationNone && c.TokenRevocation != RevocationLogout {
		errs = append(errs, fmt.Errorf("token revocation must be %q or %q, got %q", RevocationNone, RevocationLogout, c.TokenRevocation))
	}
	if c.SessionTTL <= 0 || c.TokenTTL <= 0 {
		errs = append(errs, errors.New("session and token ttl must be positive"))
	}
	if c.MinPasswordLength < 1 {
		errs = append(errs, errors.New("minimum password length must be at least 1"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.Production() {
		if c.ScryptN < password.DefaultParams.N || c.ScryptR < password.DefaultParams.R || c.ScryptP < password.DefaultParams.P {
			errs = append(errs, fmt.Errorf("scrypt cost must be at least N=%d r=%d p=%d in production",
				password.DefaultParams.N, password.DefaultParams.R, password.DefaultParams.P))
		}
		if slices.Contains(c.CORSOrigins, "*") && c.Mode == ModeSession {
			errs = append(errs, errors.New("cors origin \"*\" cannot be combined with session cookies in production"))
		}
		switch c.Mode {
		case ModeSession:
			if len(c.SessionSecret) < MinSecretLen {
				errs = append(errs, fmt.Errorf("session secret must be at least %d bytes in production", MinSecretLen))
			}
			if !c.CookieSecure {
				errs = append(errs, errors.New("cookies must be secure in production"))
			}
		case ModeToken:
			if len(c.TokenSecret) < MinSecretLen {
				errs = append(errs, fmt.Errorf("token secret must be at least %d bytes in production", MinSecretLen))
			}
		}
	}
	return errors.Join(errs...)
}

// Secret returns the signing secret of the active mode.
func (c *Config) Secret() string {
	if c.Mode == ModeToken {
		return c.TokenSecret
	}
	return c.SessionSecret
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
