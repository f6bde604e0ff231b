package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
)

// ProfileChecker reports whether a user has saved a profile.
type ProfileChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ProfileRequiredMiddleware rejects users who have not saved a profile yet.
// It must be used AFTER AuthMiddleware.
func ProfileRequiredMiddleware(profiles ProfileChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			// This should not happen if AuthMiddleware is used before it
			abort(c, apperr.ErrUnauthenticated)
			return
		}

		ok, err := profiles.Exists(c.Request.Context(), userID)
		if err != nil {
			abort(c, apperr.As(err))
			return
		}
		if !ok {
			abort(c, apperr.New(apperr.KindForbidden, "profile_required", "create your profile first"))
			return
		}

		c.Next()
	}
}
