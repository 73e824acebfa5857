package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHD_"

// field ties one setting to its flag name, environment variable and storage.
type field struct {
	flag  string
	env   string
	usage string
	ptr   any
}

func (c *Config) fields() []field {
	return []field{
		{"addr", "AUTHD_ADDR", "address to listen on", &c.Addr},
		{"environment", "AUTHD_ENVIRONMENT", "development or production", &c.Environment},
		{"mode", "AUTHD_MODE", "identity discipline: session or token", &c.Mode},
		{"store-driver", "AUTHD_STORE_DRIVER", "storage backend: memory, sqlite, postgres, mysql or bolt", &c.StoreDriver},
		{"store-dsn", "AUTHD_STORE_DSN", "storage DSN or file path", &c.StoreDSN},
		{"session-secret", "AUTHD_SESSION_SECRET", "HMAC secret for session cookies", &c.SessionSecret},
		{"session-ttl", "AUTHD_SESSION_TTL", "absolute session lifetime", &c.SessionTTL},
		{"session-cookie-name", "AUTHD_SESSION_COOKIE_NAME", "session cookie name", &c.SessionCookieName},
		{"cookie-secure", "AUTHD_COOKIE_SECURE", "set the Secure attribute on cookies", &c.CookieSecure},
		{"token-secret", "AUTHD_TOKEN_SECRET", "HMAC secret for bearer tokens", &c.TokenSecret},
		{"token-ttl", "AUTHD_TOKEN_TTL", "bearer token lifetime", &c.TokenTTL},
		{"token-revocation", "AUTHD_TOKEN_REVOCATION", "bearer token revocation: none or logout", &c.TokenRevocation},
		{"scrypt-n", "AUTHD_SCRYPT_N", "scrypt CPU/memory cost", &c.ScryptN},
		{"scrypt-r", "AUTHD_SCRYPT_R", "scrypt block size", &c.ScryptR},
		{"scrypt-p", "AUTHD_SCRYPT_P", "scrypt parallelism", &c.ScryptP},
		{"min-password-length", "AUTHD_MIN_PASSWORD_LENGTH", "minimum password length at registration", &c.MinPasswordLength},
		{"trusted-proxies", "AUTHD_TRUSTED_PROXIES", "comma-separated CIDRs of reverse proxies whose forwarding headers are trusted", &c.TrustedProxies},
		{"cors-origins", "AUTHD_CORS_ORIGINS", "comma-separated browser origins allowed to call the API", &c.CORSOrigins},
		{"log-level", "AUTHD_LOG_LEVEL", "debug, info, warn or error", &c.LogLevel},
		{"log-format", "AUTHD_LOG_FORMAT", "json or text", &c.LogFormat},
		{"shutdown-timeout", "AUTHD_SHUTDOWN_TIMEOUT", "graceful shutdown timeout", &c.ShutdownTimeout},
	}
}

func (f field) set(raw string) error {
	switch p := f.ptr.(type) {
	case *string:
		*p = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.flag, err)
		}
		*p = v
	case *bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.flag, err)
		}
		*p = v
	case *[]string:
		*p = splitList(raw)
	case *time.Duration:
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.flag, err)
		}
		*p = v
	default:
		return fmt.Errorf("%s: unsupported field type %T", f.flag, f.ptr)
	}
	return nil
}

// applyEnv sets every field whose environment variable is present in vars.
func (c *Config) applyEnv(vars map[string]string) error {
	for _, f := range c.fields() {
		raw, ok := vars[f.env]
		if !ok {
			continue
		}
		if err := f.set(raw); err != nil {
			return fmt.Errorf("env %s: %w", f.env, err)
		}
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
