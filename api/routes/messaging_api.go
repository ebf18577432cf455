package routes

import (
	"teamhub/api/handlers"
	"teamhub/api/middleware"

	"github.com/gin-gonic/gin"
)

// MessagingApi регистрирует HTTP-поверхность инбокса.
// authMiddleware передается снаружи, чтобы тесты могли подменить
// реальную проверку токена.
func MessagingApi(router *gin.Engine, authMiddleware gin.HandlerFunc) *gin.RouterGroup {
	messagingEndpoints := router.Group("/api/", authMiddleware)
	{
		messagingEndpoints.GET("team-messages", handlers.ListThreadsHandler)
		messagingEndpoints.POST("team-messages", handlers.SendMessageHandler)
		messagingEndpoints.POST("team-messages/mark-read", handlers.MarkMessagesAsReadHandler)
		messagingEndpoints.DELETE("team-messages/:id", middleware.CSRFMiddleware(), handlers.DeleteMessageHandler)
		messagingEndpoints.GET("csrf-token", handlers.CSRFTokenHandler)
		messagingEndpoints.GET("ws/inbox", handlers.WSInboxHandler)
	}
	return messagingEndpoints
}
