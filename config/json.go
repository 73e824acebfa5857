package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// jsonConfig is the on-disk shape of a config file. Keys missing from the
// file keep the value they had before loading.
type jsonConfig struct {
	Addr              string   `json:"addr"`
	Environment       string   `json:"environment"`
	Mode              string   `json:"mode"`
	StoreDriver       string   `json:"store_driver"`
	StoreDSN          string   `json:"store_dsn"`
	SessionSecret     string   `json:"session_secret"`
	SessionTTL        Duration `json:"session_ttl"`
	SessionCookieName string   `json:"session_cookie_name"`
	CookieSecure      bool     `json:"cookie_secure"`
	TokenSecret       string   `json:"token_secret"`
	TokenTTL          Duration `json:"token_ttl"`
	TokenRevocation   string   `json:"token_revocation"`
	ScryptN           int      `json:"scrypt_n"`
	ScryptR           int      `json:"scrypt_r"`
	ScryptP           int      `json:"scrypt_p"`
	MinPasswordLength int      `json:"min_password_length"`
	TrustedProxies    []string `json:"trusted_proxies"`
	CORSOrigins       []string `json:"cors_origins"`
	LogLevel          string   `json:"log_level"`
	LogFormat         string   `json:"log_format"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
}

// loadJSON overlays the values found in the JSON file at path onto c.
func (c *Config) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	j := jsonConfig{
		Addr:              c.Addr,
		Environment:       c.Environment,
		Mode:              c.Mode,
		StoreDriver:       c.StoreDriver,
		StoreDSN:          c.StoreDSN,
		SessionSecret:     c.SessionSecret,
		SessionTTL:        Duration{c.SessionTTL},
		SessionCookieName: c.SessionCookieName,
		CookieSecure:      c.CookieSecure,
		TokenSecret:       c.TokenSecret,
		TokenTTL:          Duration{c.TokenTTL},
		TokenRevocation:   c.TokenRevocation,
		ScryptN:           c.ScryptN,
		ScryptR:           c.ScryptR,
		ScryptP:           c.ScryptP,
		MinPasswordLength: c.MinPasswordLength,
		TrustedProxies:    c.TrustedProxies,
		CORSOrigins:       c.CORSOrigins,
		LogLevel:          c.LogLevel,
		LogFormat:         c.LogFormat,
		ShutdownTimeout:   Duration{c.ShutdownTimeout},
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.Addr = j.Addr
	c.Environment = j.Environment
	c.Mode = j.Mode
	c.StoreDriver = j.StoreDriver
	c.StoreDSN = j.StoreDSN
	c.SessionSecret = j.SessionSecret
	c.SessionTTL = j.SessionTTL.Duration
	c.SessionCookieName = j.SessionCookieName
	c.CookieSecure = j.CookieSecure
	c.TokenSecret = j.TokenSecret
	c.TokenTTL = j.TokenTTL.Duration
	c.TokenRevocation = j.TokenRevocation
	c.ScryptN = j.ScryptN
	c.ScryptR = j.ScryptR
	c.ScryptP = j.ScryptP
	c.MinPasswordLength = j.MinPasswordLength
	c.TrustedProxies = j.TrustedProxies
	c.CORSOrigins = j.CORSOrigins
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	return nil
}
