package auth

import (
	"errors"
	"sync"
	"time"

	"jammr/backend/pkg/jwt"
)

// State is where a Session is in its lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateEnded           State = "ended"
)

var ErrSessionState = errors.New("invalid session state transition")

// Session is the per-request identity. Handlers read the user id from it
// instead of from globals.
//
//	unauthenticated -> authenticating -> authenticated -> ended
//	                   authenticating -> unauthenticated (token rejected)
type Session struct {
	mu        sync.RWMutex
	state     State
	userID    string
	tokenID   string
	expiresAt time.Time
}

func NewSession() *Session {
	return &Session{state: StateUnauthenticated}
}

// Begin marks that a credential is being checked.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnauthenticated {
		return ErrSessionState
	}
	s.state = StateAuthenticating
	return nil
}

// Complete binds the verified claims to the session.
func (s *Session) Complete(c jwt.Claims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticating || c.UserID == "" {
		return ErrSessionState
	}
	s.state = StateAuthenticated
	s.userID = c.UserID
	s.tokenID = c.TokenID
	s.expiresAt = c.ExpiresAt
	return nil
}

// Fail returns an authenticating session to unauthenticated.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticating {
		s.state = StateUnauthenticated
	}
}

// End tears the session down. The user id is no longer reported afterwards.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateEnded
	s.userID = ""
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UserID is empty unless the session is authenticated.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return ""
	}
	return s.userID
}

func (s *Session) TokenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenID
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}
