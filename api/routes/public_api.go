package routes

import (
	"teamhub/api/handlers"
	"teamhub/api/middleware"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", handlers.Register)
		publicEndpoints.POST("auth/login", handlers.Login)
	}

	authedEndpoints := router.Group("/api/v1/", middleware.AuthMiddleware())
	{
		authedEndpoints.POST("auth/logout", handlers.Logout)

		// Организационное дерево
		authedEndpoints.POST("team/members", handlers.AddTeamMember)
		authedEndpoints.GET("team/tree", handlers.GetTeamTree)
	}
	return publicEndpoints
}
