// Package server assembles authd: it builds the hasher, keys, issuer and
// HTTP routes from configuration, serves them, and runs the periodic sweep
// of expired state.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cameronmore/authd/auth"
	"github.com/cameronmore/authd/config"
	"github.com/cameronmore/authd/logging"
	"github.com/cameronmore/authd/password"
	"github.com/cameronmore/authd/secrets"
	"github.com/cameronmore/authd/storage"
	"github.com/cameronmore/authd/tokens"
)

// SweepInterval is how often expired sessions, revocations and stale
// rate-limit records are removed.
const SweepInterval = 5 * time.Minute

type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger logging.Logger
	now    func() time.Time

	auth *auth.Authenticator
	ac   *auth.AuthContext
	http *http.Server
}

// New wires a Server around an open store. The caller owns the store.
func New(cfg *config.Config, store storage.Store, logger logging.Logger) (*Server, error) {
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}
	a, err := NewAuthenticator(context.Background(), cfg, store, logger)
	if err != nil {
		return nil, err
	}
	ac := auth.NewAuthContext(a, cfg.SessionCookieName, cfg.CookieSecure, logger)
	ac.TrustedProxies = proxies
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		auth:   a,
		ac:     ac,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// NewAuthenticator builds the hasher and the configured identity
// discipline over store.
func NewAuthenticator(ctx context.Context, cfg *config.Config, store storage.Store, logger logging.Logger) (*auth.Authenticator, error) {
	hasher, err := password.NewHasher(password.Params{
		N:       cfg.ScryptN,
		R:       cfg.ScryptR,
		P:       cfg.ScryptP,
		KeyLen:  password.DefaultParams.KeyLen,
		SaltLen: password.DefaultParams.SaltLen,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring password hasher: %w", err)
	}

	key, err := signingKey(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var issuer auth.Issuer
	switch cfg.Mode {
	case config.ModeToken:
		var opts []tokens.Option
		if cfg.TokenRevocation == config.RevocationLogout {
			opts = append(opts, tokens.WithRevocations(store))
		}
		issuer = auth.NewTokenIssuer(tokens.NewIssuer(key, cfg.TokenTTL, opts...))
	default:
		issuer = auth.NewSessionIssuer(store, key, cfg.SessionTTL, time.Now)
	}

	return auth.NewAuthenticator(store, hasher, issuer,
		auth.WithLogger(logger),
		auth.WithMinPasswordLength(cfg.MinPasswordLength),
	), nil
}

// signingKey seals the configured secret for the active mode. Outside
// production a missing secret is replaced by random bytes, which means
// credentials do not survive a restart.
func signingKey(ctx context.Context, cfg *config.Config, logger logging.Logger) (*secrets.Key, error) {
	secret := cfg.Secret()
	if secret != "" {
		return secrets.NewKey([]byte(secret))
	}
	if cfg.Production() {
		return nil, fmt.Errorf("%s secret is required in production", cfg.Mode)
	}
	logger.Warn(ctx, "no signing secret configured; using a random key", "mode", cfg.Mode)
	return secrets.Generate(config.MinSecretLen)
}

// Authenticator returns the wired authenticator.
func (s *Server) Authenticator() *auth.Authenticator {
	return s.auth
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweepLoop(sweepCtx, SweepInterval)

	done := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	s.logger.Info(ctx, "listening", "addr", ln.Addr().String(), "mode", s.cfg.Mode, "store", s.cfg.StoreDriver)

	select {
	case <-ctx.Done():
		s.logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return <-done
	case err := <-done:
		return err
	}
}

func (s *Server) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions, expired token revocations and stale
// login-failure records. Failures are logged; the next sweep retries.
func (s *Server) Sweep(ctx context.Context) {
	now := s.now()

	expired, err := s.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "sweeping sessions", "error", err)
	}
	revoked, err := s.store.DeleteExpiredRevocations(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "sweeping revocations", "error", err)
	}
	limits := s.ac.SweepRateLimits()

	s.logger.Debug(ctx, "sweep finished", "sessions", expired, "revocations", revoked, "rate_limits", limits)
}
