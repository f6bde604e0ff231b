package auth

import (
	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and authenticates the session if present and valid,
// but does not fail if the token is missing or invalid.
func (m *Manager) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := m.authenticate(c); err != nil {
			m.log.Warn("optional auth degraded", "error", err)
		}
		c.Next()
	}
}
