// Package session answers "is a user session active?" for the alert engine
// and hands the bearer token to API clients.
package session

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appLog "bizcal/internal/log"
)

// Static is a session gate with a fixed answer, used by sources that do not
// require a login (ICS feeds, a local database).
type Static bool

func (s Static) IsSessionActive() bool { return bool(s) }

// TokenSession is backed by a bearer token, either given literally or read
// from a file on every check so that a re-login is picked up without a
// restart.
type TokenSession struct {
	token string
	path  string
	now   func() time.Time

	mu     sync.Mutex
	logged bool
}

// NewTokenSession prefers path when both are set.
func NewTokenSession(token, path string) *TokenSession {
	return &TokenSession{
		token: strings.TrimSpace(token),
		path:  path,
		now:   time.Now,
	}
}

// Token returns the current bearer token, or "" when none is available.
func (s *TokenSession) Token() (string, error) {
	if s.path == "" {
		return s.token, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// IsSessionActive reports whether a usable token is present. JWTs are parsed
// without verifying the signature (the API does that) and rejected once
// their exp claim has passed. Opaque tokens count as active.
func (s *TokenSession) IsSessionActive() bool {
	tok, err := s.Token()
	if err != nil {
		s.logOnce("session token read failed", err)
		return false
	}
	if tok == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		// Not a JWT; nothing more to check locally.
		return true
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		appLog.Debug("session token expired", "exp", claims.ExpiresAt.Time.Format(time.RFC3339))
		return false
	}
	return true
}

func (s *TokenSession) logOnce(msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logged {
		return
	}
	s.logged = true
	appLog.Error(msg, err, "path", s.path)
}
