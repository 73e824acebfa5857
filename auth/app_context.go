package auth

import (
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/logging"
	"github.com/cameronmore/authd/sessions"
	"github.com/go-chi/chi/v5"
)

const internalErrorMessage = "internal server error"

// AuthContext serves the HTTP side of authentication: registration, login,
// logout, the current-user endpoint, and the middleware that identifies
// callers.
type AuthContext struct {
	Auth         *Authenticator
	CookieName   string
	CookieSecure bool

	// TrustedProxies are the peers whose forwarding headers name the
	// client for login rate limiting. Empty means the socket peer is the
	// client.
	TrustedProxies []netip.Prefix

	logger  logging.Logger
	limiter *failureLimiter
}

// NewAuthContext returns an AuthContext. An empty cookieName selects
// sessions.DefaultCookieName.
func NewAuthContext(a *Authenticator, cookieName string, cookieSecure bool, logger logging.Logger) *AuthContext {
	if cookieName == "" {
		cookieName = sessions.DefaultCookieName
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuthContext{
		Auth:         a,
		CookieName:   cookieName,
		CookieSecure: cookieSecure,
		logger:       logger,
		limiter:      newFailureLimiter(a.now),
	}
}

// Routes mounts the endpoints on r. The caller decides the prefix.
func (ac *AuthContext) Routes(r chi.Router) {
	r.Use(ac.Identify)
	r.Post("/register", ac.RegisterHandler)
	r.Post("/login", ac.LoginHandler)
	r.Post("/logout", ac.LogoutHandler)
	r.With(ac.RequireAuth).Get("/user", ac.UserHandler)
}

// SweepRateLimits drops stale login-failure records.
func (ac *AuthContext) SweepRateLimits() int {
	return ac.limiter.sweep()
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	accounts.Profile
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login. Token is only set in
// token mode; session mode sets a cookie instead.
type AuthResponse struct {
	User      accounts.Principal `json:"user"`
	Token     string             `json:"token,omitempty"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// RegisterHandler creates an account and signs the caller in.
//
// The expected request to this endpoint is a JSON object with the form:
//
//	{ "username": "VALUE", "password": "PASSWORD", "name": "...", "bio": "...", "website": "...", "profileImage": "..." }
//
// Every validation or conflict failure gets the same 400 response.
func (ac *AuthContext) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "registration failed")
		return
	}

	p, cred, err := ac.Auth.Register(r.Context(), Registration{
		Username: req.Username,
		Password: req.Password,
		Profile:  req.Profile,
	})
	switch {
	case errors.Is(err, ErrInvalidRegistration), errors.Is(err, accounts.ErrDuplicateUsername):
		ac.logger.Info(r.Context(), "registration rejected", "error", err)
		writeError(w, http.StatusBadRequest, "registration failed")
		return
	case err != nil:
		ac.logger.Error(r.Context(), "registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	ac.writeCredential(w, http.StatusCreated, p, cred)
}

// LoginHandler verifies a username and password and issues a credential.
//
// The expected request to this endpoint is a JSON object with the form:
//
//	{ "username": "VALUE", "password": "PASSWORD" }
func (ac *AuthContext) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := rateLimitKey(req.Username, clientIP(r, ac.TrustedProxies))
	if retryAfter, locked := ac.limiter.locked(key); locked {
		ac.logger.Warn(r.Context(), "login rate limited", "retry_after", retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	p, cred, err := ac.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		ac.limiter.fail(key)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		ac.logger.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	ac.limiter.reset(key)

	ac.writeCredential(w, http.StatusOK, p, cred)
}

// LogoutHandler revokes the presented credential and clears the session
// cookie. There is no expected request body, and logging out without a
// valid credential still succeeds.
func (ac *AuthContext) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := ac.Auth.Logout(r.Context(), ac.credentialFrom(r)); err != nil {
		ac.logger.Error(r.Context(), "logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	if ac.Auth.Issuer().Kind() == KindSession {
		http.SetCookie(w, sessions.ExpiredCookie(ac.CookieName, ac.CookieSecure))
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// UserHandler returns the principal of the authenticated caller.
func (ac *AuthContext) UserHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Identify resolves the request's credential, Bearer header first and then
// the session cookie, and stores the principal on the request context.
// Requests without a valid credential continue unauthenticated.
func (ac *AuthContext) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := ac.credentialFrom(r)
		if credential == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, err := ac.Auth.Resolve(r.Context(), credential)
		if errors.Is(err, ErrUnauthenticated) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			ac.logger.Error(r.Context(), "resolving credential", "error", err)
			writeError(w, http.StatusInternalServerError, internalErrorMessage)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAuth rejects requests that Identify did not authenticate.
func (ac *AuthContext) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ac *AuthContext) writeCredential(w http.ResponseWriter, status int, p accounts.Principal, cred Credential) {
	resp := AuthResponse{User: p, ExpiresAt: cred.ExpiresAt}
	switch cred.Kind {
	case KindSession:
		http.SetCookie(w, sessions.NewCookie(ac.CookieName, cred.Value, cred.ExpiresAt, ac.CookieSecure))
	case KindToken:
		resp.Token = cred.Value
	}
	writeJSON(w, status, resp)
}

func (ac *AuthContext) credentialFrom(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(ac.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
