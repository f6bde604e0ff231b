package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/logger"
	"jammr/backend/pkg/jwt"
)

const (
	sessionKey = "session"
	userIDKey  = "userID"
)

// Manager verifies bearer tokens and owns sign-out.
type Manager struct {
	tokens  *jwt.Issuer
	revoked RevocationStore
	log     *logger.Logger
}

func NewManager(tokens *jwt.Issuer, revoked RevocationStore, log *logger.Logger) *Manager {
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &Manager{tokens: tokens, revoked: revoked, log: log.With("component", "auth")}
}

// AuthMiddleware rejects requests without a valid, unrevoked bearer token.
func (m *Manager) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := m.authenticate(c)
		if err != nil {
			abort(c, apperr.As(err))
			return
		}
		if s.State() != StateAuthenticated {
			abort(c, apperr.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// authenticate attaches a fresh Session to c and tries to authenticate it
// from the Authorization header. A missing or bad token leaves the session
// unauthenticated without error; only a revocation store failure is an error.
func (m *Manager) authenticate(c *gin.Context) (*Session, error) {
	s := NewSession()
	c.Set(sessionKey, s)

	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return s, nil
	}
	_ = s.Begin()

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		s.Fail()
		return s, nil
	}
	revoked, err := m.revoked.IsRevoked(c.Request.Context(), claims.TokenID)
	if err != nil {
		s.Fail()
		m.log.Error("revocation lookup failed", "error", err)
		return s, apperr.Unavailable(err)
	}
	if revoked {
		s.Fail()
		return s, nil
	}
	if err := s.Complete(claims); err != nil {
		s.Fail()
		return s, nil
	}
	c.Set(userIDKey, claims.UserID)
	return s, nil
}

// SignOut revokes the session's token until it expires and ends the session.
func (m *Manager) SignOut(c *gin.Context) error {
	s := SessionFrom(c)
	if s == nil || s.State() != StateAuthenticated {
		return apperr.ErrUnauthenticated
	}
	if err := m.revoked.Revoke(c.Request.Context(), s.TokenID(), s.ExpiresAt()); err != nil {
		return apperr.Unavailable(err)
	}
	s.End()
	c.Set(userIDKey, "")
	return nil
}

// SessionFrom returns the request's session, or nil outside the middleware.
func SessionFrom(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

// UserID returns the authenticated user id, or "".
func UserID(c *gin.Context) string {
	if s := SessionFrom(c); s != nil {
		return s.UserID()
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, e *apperr.Error) {
	if e == nil {
		e = apperr.As(errors.New("unknown error"))
	}
	c.AbortWithStatusJSON(e.Status(), gin.H{
		"error":     e.Message,
		"code":      e.Code,
		"retryable": e.Retryable(),
	})
}
