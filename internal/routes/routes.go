package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dating-app-server/internal/chat"
	"dating-app-server/internal/handlers"
	"dating-app-server/internal/middleware"
	"dating-app-server/internal/models"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, core *chat.Core, gateway *chat.ConnectionGateway, verifier chat.IdentityVerifier) {
	// Initialize handlers
	conversationHandler := handlers.NewConversationHandler(core)
	messageHandler := handlers.NewMessageHandler(core)

	// Authenticated REST surface
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(verifier))
	{
		conversationRoutes := private.Group("/conversations")
		{
			conversationRoutes.POST("", conversationHandler.CreateConversation)
			conversationRoutes.GET("", conversationHandler.GetConversations)
			conversationRoutes.GET("/:id", conversationHandler.GetConversation)
			conversationRoutes.GET("/:id/messages", conversationHandler.GetConversationMessages)
			conversationRoutes.POST("/:id/read", conversationHandler.MarkConversationRead)
			conversationRoutes.POST("/:id/block", conversationHandler.BlockConversation)
			conversationRoutes.POST("/:id/archive", conversationHandler.ArchiveConversation)
		}

		messageRoutes := private.Group("/messages")
		{
			messageRoutes.POST("", messageHandler.SendMessage)
			messageRoutes.DELETE("/:messageId", messageHandler.DeleteMessage)
		}

		// Moderation reads: admins may inspect any conversation.
		adminRoutes := private.Group("/admin")
		adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/conversations/:id", conversationHandler.GetConversation)
			adminRoutes.GET("/conversations/:id/messages", conversationHandler.GetConversationMessages)
		}
	}

	// Socket endpoint authenticates inside the handshake (bearer token in
	// query or header), so it sits outside the REST middleware chain.
	router.GET("/ws", gateway.Handle())

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
