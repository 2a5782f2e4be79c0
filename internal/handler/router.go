package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/middleware"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/service"
)

// Deps bundles everything route registration needs.
type Deps struct {
	JWTSecret []byte
	Users     *repo.UserRepo

	Auth      *service.AuthService
	UserSvc   *service.UserService
	Tokens    *service.TokenService
	Chat      *service.ChatService
	Documents *service.DocumentService
}

// Register mounts all routes on the versioned API group.
func Register(deps *Deps) func(gp *gin.RouterGroup) {
	authHandler := NewAuthHandler(deps.Auth)
	userHandler := NewUserHandler(deps.UserSvc, deps.Tokens)
	chatHandler := NewChatHandler(deps.Chat)
	docHandler := NewDocumentHandler(deps.Documents)
	adminHandler := NewAdminHandler(deps.UserSvc, deps.Tokens)

	return func(gp *gin.RouterGroup) {
		gp.POST("/auth/register", authHandler.Register)
		gp.POST("/auth/login", authHandler.Login)

		authed := gp.Group("", middleware.Auth(deps.JWTSecret, deps.Users))
		{
			authed.GET("/users/me", userHandler.Me)
			authed.PUT("/users/me", userHandler.UpdateMe)
			authed.GET("/users/me/tokens", userHandler.Balance)
			authed.GET("/users/me/usage", userHandler.Usage)

			authed.POST("/chat/completions", chatHandler.Completion)
			authed.POST("/chat/sessions", chatHandler.CreateSession)
			authed.GET("/chat/sessions", chatHandler.ListSessions)
			authed.GET("/chat/sessions/:session_id", chatHandler.GetSession)
			authed.PATCH("/chat/sessions/:session_id", chatHandler.UpdateSession)
			authed.DELETE("/chat/sessions/:session_id", chatHandler.DeleteSession)
			authed.GET("/chat/sessions/:session_id/messages", chatHandler.History)

			authed.POST("/documents", docHandler.Upload)
			authed.GET("/documents", docHandler.List)
			authed.GET("/documents/:document_id", docHandler.Get)
			authed.DELETE("/documents/:document_id", docHandler.Delete)
			authed.POST("/documents/:document_id/process", docHandler.Process)
		}

		admin := authed.Group("/admin", middleware.AdminOnly())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users/:user_id", adminHandler.GetUser)
			admin.PATCH("/users/:user_id", adminHandler.SetActive)
			admin.DELETE("/users/:user_id", adminHandler.DeleteUser)
			admin.POST("/users/:user_id/tokens", adminHandler.GrantTokens)
			admin.GET("/users/:user_id/usage", adminHandler.UserUsage)
			admin.GET("/usage", adminHandler.UsageTotals)
		}
	}
}
