package router

import (
	"github.com/gin-gonic/gin"

	"eventsponsor.messaging/internal/config"
	"eventsponsor.messaging/internal/handler"
	"eventsponsor.messaging/internal/middleware"
	"eventsponsor.messaging/pkg/jwt"
)

// Handlers groups the HTTP handlers mounted by SetupRouter.
type Handlers struct {
	Chat *handler.ChatHandler
	User *handler.UserHandler
	WS   *handler.WSHandler

	// SendLimiter throttles message sends; pass the same pool to the WebSocket
	// handler to give each user one budget across transports.
	SendLimiter *middleware.LimiterPool
}

// SetupRouter builds the API engine.
func SetupRouter(cfg *config.Config, jwtService *jwt.Service, h Handlers) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.WebSocket.AllowedOrigins))

	v1 := r.Group("/api/v1")
	{
		// browsers cannot set headers on a WebSocket upgrade
		v1.GET("/ws", middleware.JWTAuth(jwtService, true), h.WS.Serve)

		authenticated := v1.Group("")
		authenticated.Use(middleware.JWTAuth(jwtService, false))
		{
			chats := authenticated.Group("/chats")
			{
				chats.POST("", h.Chat.Create)
				chats.POST("/enquiry", h.Chat.CreateForEnquiry)
				chats.GET("/find", h.Chat.Find)
				chats.GET("", h.Chat.List)
				chats.GET("/:id/messages", h.Chat.Messages)
				if cfg.RateLimit.Enabled {
					limiter := h.SendLimiter
					if limiter == nil {
						limiter = middleware.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
					}
					chats.POST("/:id/messages", middleware.RateLimit(limiter), h.Chat.Send)
				} else {
					chats.POST("/:id/messages", h.Chat.Send)
				}
				chats.POST("/:id/read", h.Chat.MarkRead)
				chats.PUT("/:id/archive", h.Chat.Archive)
			}

			users := authenticated.Group("/users")
			{
				users.GET("/:id", h.User.Get)
				users.GET("/:id/role", h.User.Role)
				users.POST("/:id/refresh-snapshots", h.User.RefreshSnapshots)
			}

			admin := authenticated.Group("/admin")
			admin.Use(middleware.RequireAdmin(cfg.App.AdminIDs))
			{
				admin.GET("/chats", h.Chat.ListAll)
			}
		}
	}

	return r
}
