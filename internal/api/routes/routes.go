package routes

import (
	"github.com/andgrowhq/chatwidget/internal/api/handlers"
	"github.com/andgrowhq/chatwidget/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Chat         *handlers.ChatHandler
	Conversation *handlers.ConversationHandler
	Site         *handlers.SiteHandler
	Auth         *handlers.AuthHandler
	WS           *handlers.WSHandler

	// ChatRatePerMinute caps visitor submissions per IP. Zero disables the
	// limiter.
	ChatRatePerMinute int
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")

	// Visitor routes. The chat endpoints are the expensive ones; history
	// reads are cheap and stay unlimited.
	chat := api.Group("/")
	if d.ChatRatePerMinute > 0 {
		chat.Use(middleware.RateLimit(d.ChatRatePerMinute))
	}
	chat.POST("/chat", d.Chat.Store)
	chat.POST("/chat/async", d.Chat.StoreAsync)

	api.GET("/conversation/:id", d.Conversation.Show)
	api.GET("/session/:session_id/messages", d.Conversation.MessagesBySession)

	api.POST("/admin/login", d.Auth.Login)

	// Admin routes (JWT)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth())

	admin.POST("/sites", d.Site.Create)
	admin.GET("/sites", d.Site.List)
	admin.PATCH("/sites/:id", d.Site.SetActive)
	admin.DELETE("/sites/:id", d.Site.Delete)

	// WebSocket
	r.GET("/ws/chat/:session_id", d.WS.SessionWS)
}
