// ABOUTME: Identity collaborator for terminal clients backed by an env var or token file
// ABOUTME: Re-reads the bearer token on every call and derives the username from JWT claims

package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UnknownUser is reported when no username can be derived from the token.
const UnknownUser = "Unknown"

// ErrEmptyToken is returned by Login when no token is given.
var ErrEmptyToken = errors.New("token is empty")

// Provider is the identity collaborator consumed by the client core.
type Provider interface {
	IsAuthenticated() bool
	Token() string
	Username() string
	Login(token string) error
	Logout() error
}

// TokenSource reads the bearer token from an environment variable first and
// a token file second, on every call. Login writes the token file; Logout
// removes it and ignores the environment variable until the next Login.
type TokenSource struct {
	envVar string
	path   string
	now    func() time.Time

	mu        sync.Mutex
	loggedOut bool
}

// NewTokenSource creates a TokenSource. Either envVar or path may be empty.
func NewTokenSource(envVar, path string) *TokenSource {
	return &TokenSource{
		envVar: envVar,
		path:   path,
		now:    time.Now,
	}
}

// Path returns the token file path.
func (s *TokenSource) Path() string {
	return s.path
}

// Token returns the current bearer token, or "" when none is available.
func (s *TokenSource) Token() string {
	s.mu.Lock()
	loggedOut := s.loggedOut
	s.mu.Unlock()

	if s.envVar != "" && !loggedOut {
		if token := strings.TrimSpace(os.Getenv(s.envVar)); token != "" {
			return token
		}
	}

	if s.path == "" {
		return ""
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsAuthenticated reports whether a token is present and, when it is a JWT
// with an exp claim, not yet expired. Opaque tokens count as authenticated.
func (s *TokenSource) IsAuthenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}
	claims, ok := parseClaims(token)
	if !ok {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return s.now().Before(exp.Time)
}

// Username returns the token's preferred_username, falling back to sub and
// then to UnknownUser.
func (s *TokenSource) Username() string {
	claims, ok := parseClaims(s.Token())
	if !ok {
		return UnknownUser
	}
	if name, _ := claims["preferred_username"].(string); name != "" {
		return name
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		return sub
	}
	return UnknownUser
}

// Login stores token in the token file.
func (s *TokenSource) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if s.path == "" {
		return errors.New("no token file configured")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	s.mu.Lock()
	s.loggedOut = false
	s.mu.Unlock()
	return nil
}

// Logout removes the token file. A missing file is not an error.
func (s *TokenSource) Logout() error {
	s.mu.Lock()
	s.loggedOut = true
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// parseClaims decodes JWT claims without verifying the signature. The agent
// service verifies tokens; the client only needs display fields.
func parseClaims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
