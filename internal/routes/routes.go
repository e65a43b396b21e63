package routes

import (
	"room-relay-backend/internal/config"
	"room-relay-backend/internal/handler"
	"room-relay-backend/internal/middleware"
	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth  *handler.AuthHandler
	Room  *handler.RoomHandler
	Guest *handler.GuestHandler
	WS    *handler.WSHandler
}

// Setup builds the router. A nil limiter disables rate limiting.
func Setup(cfg *config.Config, h Handlers, tokens middleware.TokenVerifier, limiter middleware.Counter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS(cfg))

	guarded := []gin.HandlerFunc{}
	if limiter != nil {
		guarded = append(guarded, middleware.RateLimit(limiter, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
	}
	withLimit := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guarded...), handlers...)
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": "room-relay-backend",
		})
	})

	r.POST("/auth/login", withLimit(h.Auth.Login)...)

	// Relay; the owner's token and the guest's join key arrive in the handshake
	r.GET("/ws/:room_id", h.WS.Connect)

	// Guest identity (public, gated by the join key)
	guest := r.Group("/guest")
	{
		guest.POST("/setup", withLimit(h.Guest.Setup)...)
		guest.POST("/verify", withLimit(h.Guest.Verify)...)
	}

	// Room administration (master token)
	rooms := r.Group("/rooms")
	rooms.Use(middleware.AuthMiddleware(tokens))
	{
		rooms.POST("", h.Room.CreateRoom)
		rooms.GET("/:room_id", h.Room.GetRoom)
		rooms.DELETE("/:room_id", h.Room.DeleteRoom)
		rooms.POST("/:room_id/expire", h.Room.ExpireNow)
		rooms.PUT("/:room_id/expiry", h.Room.SetExpiry)
		rooms.POST("/:room_id/revoke", h.Room.RevokeJoin)
		rooms.PUT("/:room_id/guest/pin", h.Room.ChangeGuestPIN)
	}

	return r
}
