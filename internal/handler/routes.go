package handler

import (
	"github.com/gin-gonic/gin"

	"jammr/backend/internal/auth"
)

// Handlers groups every API handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Profiles   *ProfileHandler
	Discovery  *DiscoveryHandler
	Requests   *RequestHandler
	Chats      *ChatHandler
	Locations  *LocationHandler
	Vocabulary *VocabularyHandler
}

// RegisterRoutes mounts the API on apiV1.
func RegisterRoutes(apiV1 *gin.RouterGroup, h Handlers, sessions *auth.Manager, profiles auth.ProfileChecker) {
	requireAuth := sessions.AuthMiddleware()

	apiV1.GET("/vocabulary", h.Vocabulary.GetVocabulary)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/federated", h.Auth.Federated)
		authRoutes.POST("/logout", requireAuth, h.Auth.Logout)
		authRoutes.GET("/session", sessions.OptionalAuthMiddleware(), h.Auth.Session)
	}

	// Profile routes; other users' profiles are public
	apiV1.GET("/profiles/:id", sessions.OptionalAuthMiddleware(), h.Profiles.GetByID)
	me := apiV1.Group("/profiles/me")
	me.Use(requireAuth)
	{
		me.GET("", h.Profiles.GetMe)
		me.PUT("", h.Profiles.SaveMe)
		me.POST("/media/:kind", h.Profiles.UploadMedia)
		me.DELETE("/media/:kind", h.Profiles.RemoveMedia)
	}

	apiV1.GET("/discover", requireAuth, h.Discovery.Discover)

	locationRoutes := apiV1.Group("/locations")
	locationRoutes.Use(requireAuth)
	{
		locationRoutes.GET("/suggest", h.Locations.Suggest)
		locationRoutes.GET("/resolve", h.Locations.Resolve)
		locationRoutes.GET("/reverse", h.Locations.Reverse)
		locationRoutes.GET("/geocode", h.Locations.Geocode)
	}

	// Connection request routes (protected)
	requestRoutes := apiV1.Group("/requests")
	requestRoutes.Use(requireAuth)
	{
		requestRoutes.POST("", auth.ProfileRequiredMiddleware(profiles), h.Requests.Send)
		requestRoutes.GET("/inbound", h.Requests.Inbound)
		requestRoutes.GET("/accepted", h.Requests.Accepted)
		requestRoutes.GET("/outbound", h.Requests.Outbound)
		requestRoutes.POST("/:id/accept", h.Requests.Accept)
		requestRoutes.POST("/:id/decline", h.Requests.Decline)
	}

	// Chat routes (protected)
	chatRoutes := apiV1.Group("/chats")
	chatRoutes.Use(requireAuth)
	{
		chatRoutes.GET("", h.Chats.List)
		chatRoutes.POST("", h.Chats.Open)
		chatRoutes.GET("/:id/messages", h.Chats.Messages)
		chatRoutes.POST("/:id/messages", h.Chats.Send)
		chatRoutes.GET("/:id/history", h.Chats.History)
		chatRoutes.GET("/:id/stream", h.Chats.Stream)
	}
}
