package app

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
)

const sessionCookie = "quadpin_session"

// Auth guards the UI with a single shared password and an opaque session cookie.
type Auth struct {
	mu       sync.Mutex
	enabled  bool
	password string
	tokens   map[string]struct{}
}

// NewAuth returns an Auth. When enabled is false every request is allowed.
func NewAuth(enabled bool, password string) *Auth {
	return &Auth{enabled: enabled, password: password, tokens: make(map[string]struct{})}
}

// Enabled reports whether a password is required.
func (a *Auth) Enabled() bool {
	return a.enabled
}

// Check reports whether the request carries a valid session cookie.
func (a *Auth) Check(r *http.Request) bool {
	if !a.enabled {
		return true
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tokens[c.Value]
	return ok
}

// Login verifies the password and sets a fresh session cookie on success.
func (a *Auth) Login(w http.ResponseWriter, password string) bool {
	if !a.enabled {
		return true
	}
	if a.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return false
	}
	token, err := newToken()
	if err != nil {
		return false
	}
	a.mu.Lock()
	a.tokens[token] = struct{}{}
	a.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}

// Logout forgets the request's session and clears the cookie.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		a.mu.Lock()
		delete(a.tokens, c.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// newToken returns 32 random bytes hex-encoded.
func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
