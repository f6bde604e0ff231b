package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/auth"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/service"
)

// region --- DTOs ---

// RegisterInput defines the structure for email/password sign-up.
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email" example:"ann@example.com"`
	Password string `json:"password" binding:"required,min=6,max=72" example:"password123"`
}

// LoginInput defines the structure for email/password sign-in.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email" example:"ann@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// FederatedInput carries a provider ID token.
type FederatedInput struct {
	Provider string `json:"provider" binding:"required,oneof=google" example:"google"`
	IDToken  string `json:"id_token" binding:"required"`
}

// TokenResponse is returned by every successful sign-in.
type TokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IsNewUser bool      `json:"is_new_user"`
}

// SessionResponse reports the caller's session state.
type SessionResponse struct {
	State     auth.State `json:"state" example:"authenticated"`
	UserID    string     `json:"user_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// endregion

type AuthHandler struct {
	log      *logger.Logger
	identity *service.IdentityService
	sessions *auth.Manager
}

func NewAuthHandler(log *logger.Logger, identity *service.IdentityService, sessions *auth.Manager) *AuthHandler {
	return &AuthHandler{
		log:      log.With("handler", "AuthHandler"),
		identity: identity,
		sessions: sessions,
	}
}

func newTokenResponse(r *service.AuthResult) TokenResponse {
	return TokenResponse{Token: r.Token, UserID: r.UserID, ExpiresAt: r.ExpiresAt, IsNewUser: r.IsNewUser}
}

// Register godoc
// @Summary      Register a new account
// @Description  Creates an email/password account and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Email already registered"
// @Failure      503  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	res, err := h.identity.SignUp(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newTokenResponse(res))
}

// Login godoc
// @Summary      Log in
// @Description  Authenticates with email and password and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	res, err := h.identity.SignIn(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Federated godoc
// @Summary      Sign in with a federated provider
// @Description  Verifies a Google ID token, creating the account on first use.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body FederatedInput true "Provider token"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Email registered with a different sign-in method"
// @Router       /auth/federated [post]
func (h *AuthHandler) Federated(c *gin.Context) {
	var input FederatedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	res, err := h.identity.FederatedSignIn(c.Request.Context(), input.Provider, input.IDToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Logout godoc
// @Summary      Sign out
// @Description  Revokes the current token and ends the session.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MessageResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.SignOut(c); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Signed out"})
}

// Session godoc
// @Summary      Current session
// @Description  Reports whether the caller is authenticated. Never fails on a bad token.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  SessionResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	s := auth.SessionFrom(c)
	if s == nil {
		c.JSON(http.StatusOK, SessionResponse{State: auth.StateUnauthenticated})
		return
	}
	resp := SessionResponse{State: s.State(), UserID: s.UserID()}
	if resp.State == auth.StateAuthenticated {
		exp := s.ExpiresAt()
		resp.ExpiresAt = &exp
	}
	c.JSON(http.StatusOK, resp)
}
